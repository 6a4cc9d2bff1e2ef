package market

import (
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/exception"
)

// Registry はすべての銘柄を保持するインメモリのストアです。
// 1銘柄に対する更新は1つのロックの中で完結するので、読み手から途中状態は見えません
type Registry struct {
	assets  map[string]*Asset
	symbols []string
	mu      sync.RWMutex // 価格更新ループと各接続のリクエスト処理の両方から触られる
}

// NewRegistry は初期銘柄からレジストリを作成します
func NewRegistry(assets []Asset) (*Registry, error) {
	r := &Registry{
		assets: make(map[string]*Asset, len(assets)),
	}

	for _, a := range assets {
		if a.Symbol == "" {
			return nil, errors.New("asset symbol is empty")
		}
		if _, exists := r.assets[a.Symbol]; exists {
			return nil, errors.Errorf("duplicate asset symbol: %s", a.Symbol)
		}
		cp := a.Clone()
		r.assets[a.Symbol] = &cp
		r.symbols = append(r.symbols, a.Symbol)
	}
	sort.Strings(r.symbols)

	return r, nil
}

// Get は指定銘柄のコピーを返します
func (r *Registry) Get(symbol string) (Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[symbol]
	if !ok {
		return Asset{}, exception.ErrAssetNotFound
	}
	return a.Clone(), nil
}

// Symbols は登録済みの銘柄コードを昇順で返します
func (r *Registry) Symbols() []string {
	return append([]string(nil), r.symbols...)
}

// Snapshot は全銘柄のコピーを銘柄コードをキーにして返します
func (r *Registry) Snapshot() map[string]Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Asset, len(r.assets))
	for symbol, a := range r.assets {
		out[symbol] = a.Clone()
	}
	return out
}

// Update は1銘柄に対する複数項目の変更を1ステップとして適用します。
// fn がエラーを返した場合、その銘柄の状態は一切変わりません
func (r *Registry) Update(symbol string, fn func(a *Asset) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[symbol]
	if !ok {
		return exception.ErrAssetNotFound
	}

	draft := a.Clone()
	if err := fn(&draft); err != nil {
		return err
	}
	*a = draft
	return nil
}

func (r *Registry) ApplyPriceDelta(symbol string, multiplier float64) error {
	return r.Update(symbol, func(a *Asset) error {
		return a.ApplyPriceDelta(multiplier, time.Now())
	})
}

func (r *Registry) UpsertModifier(symbol string, kind ModifierKind, impact float64) error {
	return r.Update(symbol, func(a *Asset) error {
		a.UpsertModifier(kind, impact)
		return nil
	})
}

func (r *Registry) RecordVolume(symbol string, delta float64) error {
	return r.Update(symbol, func(a *Asset) error {
		a.RecordVolume(delta)
		return nil
	})
}
