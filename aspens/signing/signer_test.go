package signing

import (
	"testing"
)

// anvil 默认测试私钥（公开已知，仅用于测试）
const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestKeySigner_SignAndRecover(t *testing.T) {
	signer, err := NewKeySigner(testKey)
	if err != nil {
		t.Fatalf("NewKeySigner error: %v", err)
	}

	msg := []byte(`{"market_id":"1::WETH::1::USDC","side":"BID","quantity":"1500000000000000000"}`)
	sig, err := signer.SignMessage(msg)
	if err != nil {
		t.Fatalf("SignMessage error: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length got=%d want=65", len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Fatalf("recovery byte got=%d want 27 or 28", sig[64])
	}

	recovered, err := RecoverAddress(msg, sig)
	if err != nil {
		t.Fatalf("RecoverAddress error: %v", err)
	}
	if recovered != signer.Address() {
		t.Fatalf("recovered address %s != signer address %s", recovered, signer.Address())
	}
}

func TestNewKeySigner_AcceptsPrefixVariants(t *testing.T) {
	withPrefix, err := NewKeySigner(testKey)
	if err != nil {
		t.Fatalf("with 0x prefix: %v", err)
	}
	withoutPrefix, err := NewKeySigner(testKey[2:])
	if err != nil {
		t.Fatalf("without 0x prefix: %v", err)
	}
	if withPrefix.Address() != withoutPrefix.Address() {
		t.Fatal("prefix handling changed the derived address")
	}
}

func TestNewKeySigner_RejectsGarbage(t *testing.T) {
	if _, err := NewKeySigner("not-a-key"); err == nil {
		t.Fatal("expected error for malformed key")
	}
}

func TestSignMessageHex(t *testing.T) {
	signer, err := NewKeySigner(testKey)
	if err != nil {
		t.Fatalf("NewKeySigner error: %v", err)
	}
	hex, err := SignMessageHex(signer, []byte("payload"))
	if err != nil {
		t.Fatalf("SignMessageHex error: %v", err)
	}
	if len(hex) != 2+65*2 {
		t.Fatalf("hex signature length got=%d want=%d", len(hex), 2+65*2)
	}
	if hex[:2] != "0x" {
		t.Fatalf("hex signature missing 0x prefix: %s", hex[:2])
	}
}
