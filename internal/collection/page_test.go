package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{0, 0},
		{1, 1},
		{6, 1},
		{7, 2},
		{12, 2},
		{13, 3},
		{60, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.count), "TotalPages(%d)", tt.count)
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, Offset(1))
	assert.Equal(t, 6, Offset(2))
	assert.Equal(t, 12, Offset(3))
	assert.Equal(t, 0, Offset(0))
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 1},
		{"page=3", 3},
		{"page=1", 1},
		{"page=0", 1},
		{"page=-2", 1},
		{"page=abc", 1},
		{"page=2abc", 1},
		{"page=99", 99},
		{"sort=new&page=4", 4},
		{"%zz", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePage(tt.query))
		})
	}
}

func TestPageFromLocation(t *testing.T) {
	assert.Equal(t, 3, PageFromLocation("/history?page=3"))
	assert.Equal(t, 1, PageFromLocation("/history"))
	assert.Equal(t, 1, PageFromLocation("://bad"))
}

func TestLinks(t *testing.T) {
	assert.Equal(t, "/history?page=2", PageURL(2))
	assert.Equal(t, "/poem/cv37rs3pp9olc6atsptg?page=4", DetailLink("cv37rs3pp9olc6atsptg", 4))
	assert.Equal(t, "/history?page=4", BackLink("page=4"))
	assert.Equal(t, "/history?page=1", BackLink(""))
}
