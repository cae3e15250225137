// Package nameparse 从文件名中推断 collection（合集/系列）与 cast（演员）。
//
// 文件名约定形如 "<合集>.<日期>.<演员...>.<其它标记...>"，日期为 yy.mm.dd 或四位年份。
// 解析是纯函数：相同输入 => 相同输出，不做 I/O，不返回错误；
// 无法识别时退化为默认值（Unknown）。
package nameparse

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Unknown 是无法推断时的默认值。
const Unknown = "Unknown"

// Result 是一次解析的结果。
type Result struct {
	Collection string
	Cast       string
}

// Normalize 把空格视为 '.' 分隔符（调用方应先 Normalize 再 Parse）。
func Normalize(name string) string {
	return strings.ReplaceAll(name, " ", ".")
}

// Parse 解析已规范化的文件名（不含扩展名）。
func Parse(filename string) Result {
	tokens := strings.Split(filename, ".")

	prefixEnd, rest, ok := findDate(tokens)
	if !ok {
		collection := Unknown
		if strings.Contains(filename, ".") {
			collection = tokens[0]
		}
		return Result{Collection: collection, Cast: Unknown}
	}

	return Result{
		Collection: strings.Join(tokens[:prefixEnd], " "),
		Cast:       assembleCast(truncateAtXXX(rest)),
	}
}

// findDate 找到最早的日期 token。
//
// 返回 prefixEnd：日期之前的 token 数（>=1）；rest：日期之后的 token（至少一个，可能为空串）。
// 日期前必须有非空前缀，日期后必须紧跟 '.'（即 rest 存在）。
func findDate(tokens []string) (prefixEnd int, rest []string, ok bool) {
	for i := 1; i < len(tokens); i++ {
		// 前缀至少一个字符："" 只会出现在文件名以 '.' 开头且 i==1 时。
		if i == 1 && tokens[0] == "" {
			continue
		}
		// dd.dd.dd 优先于 dddd（同一位置两者不会同时成立）。
		if i+3 < len(tokens) && isDigits(tokens[i], 2) && isDigits(tokens[i+1], 2) && isDigits(tokens[i+2], 2) {
			return i, tokens[i+3:], true
		}
		if i+1 < len(tokens) && isDigits(tokens[i], 4) {
			return i, tokens[i+1:], true
		}
	}
	return 0, nil, false
}

// truncateAtXXX 在第一个（大小写不敏感的）XXX 处截断。
func truncateAtXXX(matches []string) []string {
	for i, m := range matches {
		if strings.EqualFold(m, "XXX") {
			return matches[:i]
		}
	}
	return matches
}

// assembleCast 按 token 数量与 "And" 的位置拼出 cast。
//
// "And" 的位置阈值（<3 才拆分）是既有目录表依赖的行为，保持原样。
func assembleCast(matches []string) string {
	if len(matches) <= 3 {
		return strings.Join(matches, " ")
	}

	idx := indexOf(matches, "And")
	if idx < 0 || idx >= 3 {
		return strings.Join(matches[:2], " ")
	}

	before := strings.Join(matches[:idx], " ")
	after := matches[idx+1:]
	if len(after) > 2 {
		after = after[:2]
	}
	return before + ", " + strings.Join(after, " ")
}

func indexOf(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}

// isDigits 判断 s 是否恰好由 n 个十进制数字组成（含全角等 Unicode 数字，如 "２０２４"）。
func isDigits(s string, n int) bool {
	if utf8.RuneCountInString(s) != n {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
