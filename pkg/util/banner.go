package util

import (
	"fmt"
	"io"
	"os"

	"github.com/common-nighthawk/go-figure"
)

const colorReset = "\x1b[0m"

// ANSI 颜色码
var colors = map[string]string{
	"ColorRed":    "\x1b[1;31m",
	"ColorGreen":  "\x1b[1;32m",
	"ColorYellow": "\x1b[1;33m",
	"ColorBlue":   "\x1b[1;34m",
	"ColorCyan":   "\x1b[1;36m",
}

// Version 构建时通过 -ldflags "-X" 注入
var Version = "dev"

// PrintBanner 打印到 stdout
func PrintBanner(text, color string) {
	WriteBanner(os.Stdout, text, color)
}

// WriteBanner 输出整体统一颜色的 ASCII banner 与版本号；未知颜色不着色
func WriteBanner(w io.Writer, text, color string) {
	code, ok := colors[color]
	for _, line := range figure.NewFigure(text, "", true).Slicify() {
		if ok {
			line = code + line + colorReset
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "version: %s\n", Version)
}
