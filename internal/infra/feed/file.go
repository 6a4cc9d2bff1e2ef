// Package feed はセンチメントフィードの取得元（ファイル / HTTP / Redis）の実装です
package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/yanun0323/errors"

	"github.com/r-umemoto/meme-market/internal/exception"
)

// FileSource は生成側が書き出す JSON ファイルを読みます。
// 更新時刻とサイズが前回と同じなら中身は読みません
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Fetch(_ context.Context, since string) ([]byte, string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, since, errors.Wrapf(exception.ErrFeedUnavailable, "stat %s: %v", s.path, err)
	}

	marker := fmt.Sprintf("%d:%d", info.ModTime().UnixNano(), info.Size())
	if marker == since {
		return nil, since, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		return nil, since, errors.Wrapf(exception.ErrFeedUnavailable, "read %s: %v", s.path, err)
	}
	return payload, marker, nil
}

func digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
