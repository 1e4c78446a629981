package wire

// Message type IDs carried in the frame header. Values follow the ordering
// of the DTC message catalogue relevant to this bridge; they are internal
// to this implementation, not a published protocol number space.
const (
	TypeEncodingRequest  uint16 = 1
	TypeEncodingResponse uint16 = 2

	TypeLogonRequest  uint16 = 3
	TypeLogonResponse uint16 = 4
	TypeHeartbeat     uint16 = 5
	TypeLogoff        uint16 = 6

	TypeMarketDataRequest        uint16 = 101
	TypeMarketDataReject         uint16 = 102
	TypeMarketDataSnapshot       uint16 = 103
	TypeMarketDataUpdateTrade    uint16 = 104
	TypeMarketDataUpdateBidAsk   uint16 = 105
	TypeMarketDataUpdateSession  uint16 = 106

	TypeMarketDepthRequest      uint16 = 111
	TypeMarketDepthReject       uint16 = 112
	TypeMarketDepthSnapshot     uint16 = 113
	TypeMarketDepthUpdateLevel  uint16 = 114

	TypeSecurityDefinitionForSymbolRequest uint16 = 120
	TypeSecurityDefinitionResponse         uint16 = 121
	TypeSecurityDefinitionReject           uint16 = 122

	TypeSubmitNewOrder             uint16 = 201
	TypeCancelOrder                uint16 = 202
	TypeCancelReplaceOrder         uint16 = 203
	TypeOrderUpdate                uint16 = 204

	TypeOpenOrdersRequest       uint16 = 210
	TypeCurrentPositionsRequest uint16 = 211
	TypePositionUpdate          uint16 = 212

	TypeHistoricalOrderFillsRequest  uint16 = 220
	TypeHistoricalOrderFillResponse  uint16 = 221

	TypeTradeAccountsRequest  uint16 = 230
	TypeTradeAccountResponse  uint16 = 231

	TypeAccountBalanceRequest uint16 = 240
	TypeAccountBalanceUpdate  uint16 = 241
	TypeAccountBalanceReject  uint16 = 242

	TypeHistoricalPriceDataRequest  uint16 = 250
	TypeHistoricalPriceDataResponse uint16 = 251
	TypeHistoricalPriceDataRecord   uint16 = 252
)
