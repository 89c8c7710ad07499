package model

import "time"

const (
	// DefaultGenre は登録時にジャンルが省略された場合の値です
	DefaultGenre = "General"
	// DefaultLanguage は登録時に言語が省略された場合の値です
	DefaultLanguage = "English"
	// DefaultImageURL は表紙画像が省略された場合のプレースホルダーです
	DefaultImageURL = "https://via.placeholder.com/300x400?text=No+Cover"
)

// Book は蔵書のドメインモデルです
// 書誌情報は登録後に変更されず、貸出可能数だけがワークフローによって更新されます
type Book struct {
	ID              string    `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	Year            int       `json:"year" db:"year"`
	DateAdded       time.Time `json:"dateAdded" db:"date_added"`
	ImageURL        string    `json:"imageUrl" db:"image_url"`
	Description     string    `json:"description" db:"description"`
	Genre           string    `json:"genre" db:"genre"`
	ISBN            string    `json:"isbn" db:"isbn"`
	Pages           int       `json:"pages" db:"pages"`
	Publisher       string    `json:"publisher" db:"publisher"`
	Language        string    `json:"language" db:"language"`
	Available       bool      `json:"available" db:"available"`
	TotalCopies     int       `json:"totalCopies" db:"total_copies"`
	AvailableCopies int       `json:"availableCopies" db:"available_copies"`
	Location        string    `json:"location" db:"location"`
}

// CheckOut は貸出確定時に貸出可能数を1減らします
// 既に0の場合は0のままにします
func (b *Book) CheckOut() {
	b.AvailableCopies = max(0, b.AvailableCopies-1)
	b.Available = b.AvailableCopies > 0
}

// CheckIn は返却時に貸出可能数を1増やします
// 上限(TotalCopies)での切り詰めは行いません
func (b *Book) CheckIn() {
	b.AvailableCopies++
	b.Available = true
}

// IsReservable は新規予約を受け付けられるかを返します
func (b Book) IsReservable() bool {
	return b.Available && b.AvailableCopies > 0
}
