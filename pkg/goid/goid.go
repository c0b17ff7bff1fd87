// Package goid 读取当前 goroutine 编号，仅用于日志字段。
package goid

import "runtime"

const stackPrefix = "goroutine "

// GetGID 从栈头 "goroutine 123 [running]:" 中解析编号，解析失败返回 0
func GetGID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	if len(b) <= len(stackPrefix) || string(b[:len(stackPrefix)]) != stackPrefix {
		return 0
	}
	var id uint64
	for _, c := range b[len(stackPrefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
