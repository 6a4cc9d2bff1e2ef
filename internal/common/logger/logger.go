package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log  *logrus.Logger
	once sync.Once
)

// Init はロガーを一度だけ初期化します。レベル文字列が不正な場合は info になります
func Init(level string) {
	once.Do(func() {
		l := logrus.New()
		l.SetOutput(os.Stdout)
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})

		lv, err := logrus.ParseLevel(level)
		if err != nil {
			lv = logrus.InfoLevel
		}
		l.SetLevel(lv)

		log = l
	})
}

// GetLogger はシングルトンのロガーを返します
func GetLogger() *logrus.Logger {
	if log == nil {
		Init(os.Getenv("LOG_LEVEL"))
	}
	return log
}
