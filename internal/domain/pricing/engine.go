// Package pricing は1ティックごとの価格変動（ランダムウォーク）を担当します
package pricing

import (
	"math/rand/v2"
	"time"

	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/domain/market"
)

// volumeShare は1ティックで加算される出来高の上限（時価総額に対する割合）です
const volumeShare = 0.001

// Band は1ティックあたりの変動倍率の一様分布の範囲です
type Band struct {
	Min float64
	Max float64
}

// Volatility は銘柄種別ごとの変動幅です
var Volatility = map[market.Class]Band{
	market.ClassMeme:   {Min: 0.95, Max: 1.05},
	market.ClassStable: {Min: 0.998, Max: 1.002},
	market.ClassEquity: {Min: 0.99, Max: 1.01},
}

// Registry は価格更新の対象となるストアの規格です
type Registry interface {
	Symbols() []string
	Update(symbol string, fn func(a *market.Asset) error) error
}

// Engine は全銘柄の価格を1ティック分進めます。
// ブロードキャストは行いません（呼び出し側の責務です）
type Engine struct {
	rng *rand.Rand
	now func() time.Time
}

// NewEngine は乱数源を受け取ってエンジンを作ります。rng が nil の場合は時刻から種を作ります
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Engine{rng: rng, now: time.Now}
}

// NewSeededEngine は固定の種で再現可能なエンジンを作ります
func NewSeededEngine(seed uint64) *Engine {
	return NewEngine(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Tick は全銘柄に1回ずつ変動倍率を適用します。
// 1銘柄の失敗で他の銘柄の更新は止めず、最初のエラーを返します。
// 乱数源を共有するため、同時に複数のゴルーチンから呼ばないでください
func (e *Engine) Tick(reg Registry) error {
	at := e.now()
	var firstErr error
	for _, symbol := range reg.Symbols() {
		err := reg.Update(symbol, func(a *market.Asset) error {
			multiplier := e.draw(a.Class) * a.ModifierProduct()
			if err := a.ApplyPriceDelta(multiplier, at); err != nil {
				return err
			}
			a.RecordVolume(e.rng.Float64() * a.MarketCap * volumeShare)
			return nil
		})
		if err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "tick %s", symbol)
		}
	}
	return firstErr
}

func (e *Engine) draw(class market.Class) float64 {
	band, ok := Volatility[class]
	if !ok {
		return 1.0
	}
	return band.Min + e.rng.Float64()*(band.Max-band.Min)
}
