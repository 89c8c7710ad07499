package model

import "errors"

// 予約・蔵書操作で呼び出し元に返すエラーの分類です
// 呼び出し元は errors.Is で判定します
var (
	// ErrNotFound は参照された書籍または予約が存在しないことを表します
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument は必須項目の欠落や範囲外の値を表します
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict は重複予約や貸出不可の書籍への予約を表します
	ErrConflict = errors.New("conflict")
	// ErrInvalidState は現在のステータスから許可されていない遷移を表します
	ErrInvalidState = errors.New("invalid state")
)
