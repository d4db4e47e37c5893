package signing

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer 签名协作者接口：对一段字节签名并返回签名。
// 核心只依赖这个接口，钱包托管方式由实现方决定。
type Signer interface {
	// Address 返回签名者地址
	Address() common.Address
	// SignMessage 对消息字节做以太坊 personal message 签名（EIP-191）
	SignMessage(msg []byte) ([]byte, error)
}

// KeySigner 基于 secp256k1 私钥的 Signer 实现
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewKeySigner 由十六进制私钥创建 KeySigner（接受可选的 0x 前缀）
func NewKeySigner(privateKeyHex string) (*KeySigner, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}
	return &KeySigner{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address 返回签名者地址
func (s *KeySigner) Address() common.Address {
	return s.address
}

// PrivateKey 返回底层私钥（链协作者构造交易签名器时需要）
func (s *KeySigner) PrivateKey() *ecdsa.PrivateKey {
	return s.privateKey
}

// SignMessage 对消息做 personal message 签名，返回 65 字节 r||s||v（v 为 27/28）
func (s *KeySigner) SignMessage(msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}
	// recovery id 转换为以太坊惯用的 27/28
	sig[64] += 27
	return sig, nil
}

// SignMessageHex 签名并编码为 0x 前缀的十六进制字符串（wire 格式）
func SignMessageHex(signer Signer, msg []byte) (string, error) {
	sig, err := signer.SignMessage(msg)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// RecoverAddress 由消息和签名恢复签名者地址（校验用）
func RecoverAddress(msg, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("签名长度无效: %d", len(sig))
	}
	recovery := make([]byte, 65)
	copy(recovery, sig)
	if recovery[64] >= 27 {
		recovery[64] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(msg), recovery)
	if err != nil {
		return common.Address{}, fmt.Errorf("恢复公钥失败: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
