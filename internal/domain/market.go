package domain

import "fmt"

// WinningOutcome 结算结果
type WinningOutcome uint8

const (
	// WinningOutcomeUnset 尚未结算
	WinningOutcomeUnset WinningOutcome = iota
	// WinningOutcomeYes YES 一侧获胜
	WinningOutcomeYes
	// WinningOutcomeNo NO 一侧获胜
	WinningOutcomeNo
	// WinningOutcomeNeither 平局/无效结果。按产品设想两侧各兑付 50%，
	// 但兑付比例尚未定稿，claim 对它返回 ErrUnsupportedOutcome。
	WinningOutcomeNeither
)

// IsValid 检查结算结果是否为可设置的取值
func (w WinningOutcome) IsValid() bool {
	return w == WinningOutcomeYes || w == WinningOutcomeNo || w == WinningOutcomeNeither
}

func (w WinningOutcome) String() string {
	switch w {
	case WinningOutcomeYes:
		return "yes"
	case WinningOutcomeNo:
		return "no"
	case WinningOutcomeNeither:
		return "neither"
	default:
		return "unset"
	}
}

// ParseWinningOutcome 把字符串解析成结算结果（API 层用）
func ParseWinningOutcome(s string) (WinningOutcome, bool) {
	switch s {
	case "yes":
		return WinningOutcomeYes, true
	case "no":
		return WinningOutcomeNo, true
	case "neither":
		return WinningOutcomeNeither, true
	default:
		return WinningOutcomeUnset, false
	}
}

// MaxMetaDataURLLen 市场元数据 URL 的最大长度
const MaxMetaDataURLLen = 200

// Market 市场记录：每个预测问题对应一个市场。
//
// 资产与托管账户都用确定性派生的字符串 ID 表示，由外部账本
// （ledger 包）负责真正的余额与转账；市场记录只保存引用。
type Market struct {
	ID                    uint32         `json:"id"`                      // 市场编号
	Authority             string         `json:"authority"`               // 创建者身份
	SettlementDeadline    int64          `json:"settlement_deadline"`     // 结算截止时间（Unix 秒）
	CollateralAsset       string         `json:"collateral_asset"`        // 抵押资产（如 USDC）
	CollateralVault       string         `json:"collateral_vault"`        // 抵押金库账户
	OutcomeYesAsset       string         `json:"outcome_yes_asset"`       // YES token 资产
	OutcomeNoAsset        string         `json:"outcome_no_asset"`        // NO token 资产
	YesEscrow             string         `json:"yes_escrow"`              // YES token 托管账户
	NoEscrow              string         `json:"no_escrow"`               // NO token 托管账户
	IsSettled             bool           `json:"is_settled"`              // 是否已结算
	WinningOutcome        WinningOutcome `json:"winning_outcome"`         // 结算结果（最多设置一次，设置后不可变）
	TotalCollateralLocked uint64         `json:"total_collateral_locked"` // 当前背书全部 token 对的抵押总量
	MetaDataURL           string         `json:"meta_data_url"`           // 链下元数据 URL（图片、名称等）
}

// MintAuthority 返回市场自身的铸币权身份。
// split 用它铸造 outcome token，结算时权限被一次性撤销。
func (m *Market) MintAuthority() string {
	return fmt.Sprintf("market:%d", m.ID)
}

// EnsureOpen 校验市场仍可交易：未结算且未过期。
func (m *Market) EnsureOpen(now int64) error {
	if m.IsSettled {
		return ErrMarketAlreadySettled
	}
	if now >= m.SettlementDeadline {
		return ErrMarketExpired
	}
	return nil
}

// WinnerAsset 返回获胜一侧的 token 资产 ID。
// Neither 没有单一获胜资产，返回 ErrUnsupportedOutcome。
func (m *Market) WinnerAsset() (string, error) {
	switch m.WinningOutcome {
	case WinningOutcomeYes:
		return m.OutcomeYesAsset, nil
	case WinningOutcomeNo:
		return m.OutcomeNoAsset, nil
	case WinningOutcomeNeither:
		return "", ErrUnsupportedOutcome
	default:
		return "", ErrWinningOutcomeNotSet
	}
}

// CollateralVaultID 派生市场抵押金库的账户 ID
func CollateralVaultID(marketID uint32) string {
	return fmt.Sprintf("market:%d:vault", marketID)
}

// YesEscrowID 派生 YES token 托管账户 ID
func YesEscrowID(marketID uint32) string {
	return fmt.Sprintf("market:%d:escrow:yes", marketID)
}

// NoEscrowID 派生 NO token 托管账户 ID
func NoEscrowID(marketID uint32) string {
	return fmt.Sprintf("market:%d:escrow:no", marketID)
}

// OutcomeYesAssetID 派生 YES token 资产 ID
func OutcomeYesAssetID(marketID uint32) string {
	return fmt.Sprintf("outcome:%d:yes", marketID)
}

// OutcomeNoAssetID 派生 NO token 资产 ID
func OutcomeNoAssetID(marketID uint32) string {
	return fmt.Sprintf("outcome:%d:no", marketID)
}
