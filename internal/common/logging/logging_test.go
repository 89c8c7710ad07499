package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		wantDebug bool
	}{
		{name: "ローカル環境ではDEBUGを出力する", env: "LOCAL", wantDebug: true},
		{name: "小文字でもローカル環境とみなす", env: "local", wantDebug: true},
		{name: "本番環境ではINFO以上のみ", env: "PROD", wantDebug: false},
		{name: "未設定は本番扱い", env: "", wantDebug: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDebug, logger.Core().Enabled(zapcore.DebugLevel))
			assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		})
	}
}
