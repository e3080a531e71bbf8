package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Drug | Dose", "Drug | Dose"},
		{"keeps newline and tab", "a\nb\tc", "a\nb\tc"},
		{"vertical tab", "a\x0bb", "a b"},
		{"carriage return", "a\r\nb", "a \nb"},
		{"nul and bell", "\x00x\x07", " x "},
		{"c1 control", "a\u0085b", "a b"},
		{"invalid utf8", "bad\xffutf8", "bad�utf8"},
		{"formula text untouched", "=SUM(A1)", "=SUM(A1)"},
		{"hangul", "검사 결과", "검사 결과"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}
