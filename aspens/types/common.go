package types

// Side 订单方向
type Side string

const (
	SideBid Side = "BID" // 买入（用 quote 换 base）
	SideAsk Side = "ASK" // 卖出（用 base 换 quote）
)

// Valid 判断方向是否为已定义的枚举值
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// Opposite 返回相反方向
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// OrderKind 订单类型
type OrderKind string

const (
	OrderKindLimit  OrderKind = "LIMIT"  // 限价单（必须带价格）
	OrderKindMarket OrderKind = "MARKET" // 市价单（无价格）
)

// Direction 结算方向（链上转账腿）
type Direction string

const (
	DirectionDeposit  Direction = "DEPOSIT"  // 入金：钱包 -> 交易合约
	DirectionWithdraw Direction = "WITHDRAW" // 出金：交易合约 -> 钱包
)

// OrderState 订单簿条目状态
type OrderState string

const (
	OrderStatePending   OrderState = "PENDING"
	OrderStateConfirmed OrderState = "CONFIRMED"
	OrderStateMatched   OrderState = "MATCHED"
	OrderStateCanceled  OrderState = "CANCELED"
	OrderStateSettled   OrderState = "SETTLED"
)
