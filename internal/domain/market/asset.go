package market

import (
	"math"
	"time"

	"github.com/r-umemoto/meme-market/internal/exception"
)

// HistoryLimit は1銘柄あたりに保持する価格履歴の上限です（古いものから捨てる）
const HistoryLimit = 100

// Class は銘柄の種別です。種別ごとにボラティリティが異なります
type Class string

const (
	ClassMeme   Class = "meme"
	ClassStable Class = "stable"
	ClassEquity Class = "equity"
)

func (c Class) Valid() bool {
	switch c {
	case ClassMeme, ClassStable, ClassEquity:
		return true
	}
	return false
}

type ModifierKind string

const (
	ModifierSentiment ModifierKind = "sentiment"
)

// Modifier は価格更新時に掛け合わされる補正係数です
type Modifier struct {
	Kind   ModifierKind `json:"type"`
	Impact float64      `json:"impact"`
}

// PricePoint は価格履歴の1サンプルです
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Asset は取引可能な1銘柄の状態です。
// MarketCap は常に Price * Supply と一致している必要があります
type Asset struct {
	Symbol    string       `json:"symbol"`
	Name      string       `json:"name"`
	Class     Class        `json:"class"`
	Price     float64      `json:"price"`
	Supply    float64      `json:"supply"`
	MarketCap float64      `json:"market_cap"`
	Volume    float64      `json:"volume"`
	History   []PricePoint `json:"history"`
	Modifiers []Modifier   `json:"modifiers"`
}

// NewAsset は初期履歴1件を持つ銘柄を生成します。
// meme 銘柄には中立（1.0）のセンチメント補正が最初から付きます
func NewAsset(symbol, name string, class Class, price, supply, volume float64, at time.Time) Asset {
	a := Asset{
		Symbol:    symbol,
		Name:      name,
		Class:     class,
		Price:     price,
		Supply:    supply,
		MarketCap: price * supply,
		Volume:    volume,
		History:   []PricePoint{{Timestamp: at, Price: price}},
		Modifiers: []Modifier{},
	}
	if class == ClassMeme {
		a.Modifiers = append(a.Modifiers, Modifier{Kind: ModifierSentiment, Impact: 1.0})
	}
	return a
}

// ApplyPriceDelta は価格に倍率を掛け、時価総額の再計算と履歴の追加を行います。
// 結果が正の有限値にならない場合は何も変更せずにエラーを返します
func (a *Asset) ApplyPriceDelta(multiplier float64, at time.Time) error {
	next := a.Price * multiplier
	if !(next > 0) || math.IsInf(next, 0) {
		return exception.ErrNonPositivePrice
	}

	a.Price = next
	a.MarketCap = a.Price * a.Supply
	a.History = append(a.History, PricePoint{Timestamp: at, Price: next})

	if over := len(a.History) - HistoryLimit; over > 0 {
		n := copy(a.History, a.History[over:])
		a.History = a.History[:n]
	}
	return nil
}

// UpsertModifier は同じ種類の補正があれば置き換え、なければ追加します
func (a *Asset) UpsertModifier(kind ModifierKind, impact float64) {
	for i := range a.Modifiers {
		if a.Modifiers[i].Kind == kind {
			a.Modifiers[i].Impact = impact
			return
		}
	}
	a.Modifiers = append(a.Modifiers, Modifier{Kind: kind, Impact: impact})
}

// ModifierProduct は有効な補正係数すべての積です（補正なしなら 1）
func (a *Asset) ModifierProduct() float64 {
	product := 1.0
	for _, m := range a.Modifiers {
		product *= m.Impact
	}
	return product
}

// RecordVolume は出来高を加算します。出来高は減らないので負の値は無視します
func (a *Asset) RecordVolume(delta float64) {
	if !(delta > 0) || math.IsInf(delta, 0) {
		return
	}
	a.Volume += delta
}

// Clone はスライスまで含めたコピーを返します
func (a Asset) Clone() Asset {
	out := a
	out.History = append([]PricePoint(nil), a.History...)
	out.Modifiers = append([]Modifier{}, a.Modifiers...)
	return out
}
