package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout はバッチ処理がタイムアウトしたことを表します
var ErrTimeout = errors.New("batch process timed out")

// RunWithTimeout は timeout 以内に fn を実行します
// タイムアウトした場合は ErrTimeout を、呼び出し元のコンテキストがキャンセルされた場合はその理由を返します
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- fn(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %v", ErrTimeout, timeout)
		}
		return ctx.Err()
	}
}
