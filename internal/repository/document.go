package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var documentJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// document はディスク上のJSON配列ファイル1つを表します
// 操作ごとにファイル全体を読み込み、変更時はファイル全体を書き戻します
type document[T any] struct {
	mu   sync.Mutex
	path string
}

func newDocument[T any](path string) *document[T] {
	return &document[T]{path: path}
}

// view はファイルを読み込んで fn に渡します
func (d *document[T]) view(ctx context.Context, fn func(items []T) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	items, err := d.load()
	if err != nil {
		return err
	}
	return fn(items)
}

// modify はファイルを読み込み、fn が返した配列で書き戻します
// fn がエラーを返した場合は書き込みを行いません
func (d *document[T]) modify(ctx context.Context, fn func(items []T) ([]T, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	items, err := d.load()
	if err != nil {
		return err
	}

	updated, err := fn(items)
	if err != nil {
		return err
	}
	return d.save(updated)
}

// load はファイルが存在しない場合は空の配列を返します
func (d *document[T]) load() ([]T, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", d.path, err)
	}

	items := []T{}
	if len(bytes.TrimSpace(data)) == 0 {
		return items, nil
	}
	if err := documentJSON.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", d.path, err)
	}
	return items, nil
}

func (d *document[T]) save(items []T) error {
	if items == nil {
		items = []T{}
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := documentJSON.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.path, err)
	}

	if err := os.WriteFile(d.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.path, err)
	}
	return nil
}
