// Package catalog は初期銘柄の一覧を YAML ファイルから読み込みます
package catalog

import (
	"os"
	"time"

	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"

	"github.com/r-umemoto/meme-market/internal/domain/market"
)

// File は銘柄カタログファイルの形式です
//
//	assets:
//	  - symbol: DOGE
//	    name: Dogecoin
//	    class: meme
//	    price: 0.12
//	    supply: 150000000000
//	    volume: 1000000
type File struct {
	Assets []Entry `yaml:"assets"`
}

type Entry struct {
	Symbol string  `yaml:"symbol"`
	Name   string  `yaml:"name"`
	Class  string  `yaml:"class"`
	Price  float64 `yaml:"price"`
	Supply float64 `yaml:"supply"`
	Volume float64 `yaml:"volume"`
}

// Load はカタログを読み込み、検証したうえで銘柄に変換します
func Load(path string, at time.Time) ([]market.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog %s", path)
	}
	return Parse(data, at)
}

func Parse(data []byte, at time.Time) ([]market.Asset, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse catalog")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	assets := make([]market.Asset, 0, len(f.Assets))
	for _, e := range f.Assets {
		name := e.Name
		if name == "" {
			name = e.Symbol
		}
		assets = append(assets, market.NewAsset(e.Symbol, name, market.Class(e.Class), e.Price, e.Supply, e.Volume, at))
	}
	return assets, nil
}

// Validate は銘柄コードの重複、未知の種別、0以下の価格・発行量を検出します
func (f File) Validate() error {
	if len(f.Assets) == 0 {
		return errors.New("catalog has no assets")
	}

	seen := make(map[string]struct{}, len(f.Assets))
	for i, e := range f.Assets {
		if e.Symbol == "" {
			return errors.Errorf("assets[%d]: symbol is empty", i)
		}
		if _, ok := seen[e.Symbol]; ok {
			return errors.Errorf("assets[%d]: duplicate symbol %s", i, e.Symbol)
		}
		seen[e.Symbol] = struct{}{}

		if !market.Class(e.Class).Valid() {
			return errors.Errorf("%s: unknown class %q", e.Symbol, e.Class)
		}
		if !(e.Price > 0) {
			return errors.Errorf("%s: price must be positive", e.Symbol)
		}
		if !(e.Supply > 0) {
			return errors.Errorf("%s: supply must be positive", e.Symbol)
		}
		if e.Volume < 0 {
			return errors.Errorf("%s: volume must not be negative", e.Symbol)
		}
	}
	return nil
}
