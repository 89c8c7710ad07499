package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBook_CheckOut(t *testing.T) {
	tests := []struct {
		name          string
		available     int
		wantAvailable int
		wantFlag      bool
	}{
		{name: "最後の1冊を貸し出すと貸出不可になる", available: 1, wantAvailable: 0, wantFlag: false},
		{name: "残りがあれば貸出可のまま", available: 3, wantAvailable: 2, wantFlag: true},
		{name: "0冊のときは0で止まる", available: 0, wantAvailable: 0, wantFlag: false},
		{name: "負数は0に補正される", available: -2, wantAvailable: 0, wantFlag: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Book{TotalCopies: 3, AvailableCopies: tt.available, Available: tt.available > 0}
			b.CheckOut()
			assert.Equal(t, tt.wantAvailable, b.AvailableCopies)
			assert.Equal(t, tt.wantFlag, b.Available)
		})
	}
}

func TestBook_CheckIn(t *testing.T) {
	b := Book{TotalCopies: 1, AvailableCopies: 0, Available: false}

	b.CheckIn()
	assert.Equal(t, 1, b.AvailableCopies)
	assert.True(t, b.Available)

	// 上限での切り詰めは行わない
	b.CheckIn()
	assert.Equal(t, 2, b.AvailableCopies)
}

func TestBook_IsReservable(t *testing.T) {
	assert.True(t, Book{Available: true, AvailableCopies: 1}.IsReservable())
	assert.False(t, Book{Available: true, AvailableCopies: 0}.IsReservable())
	assert.False(t, Book{Available: false, AvailableCopies: 2}.IsReservable())
}
