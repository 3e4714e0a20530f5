package logger

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
)

// Sanitizer 負責過濾日誌中的敏感資訊
//
// 限制說明：
//   - SanitizeArgs() 對「敏感 key 的 value」進行遮罩（如 token、secret 等）
//   - 啟用 redactPaths 時，所有字串 value 也會套用路徑規則
//   - 非字串、非 error 的 value 不處理
type Sanitizer struct {
	mu          sync.RWMutex
	patterns    []SanitizeRule
	redactPaths bool
}

// SanitizeRule 單一過濾規則
type SanitizeRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// NewSanitizer 建立 sanitizer；redactPaths 為 true 時遮蔽家目錄
func NewSanitizer(redactPaths bool) *Sanitizer {
	rules := secretRules()
	if redactPaths {
		rules = append(rules, pathRules()...)
	}
	return &Sanitizer{patterns: rules, redactPaths: redactPaths}
}

// secretRules 回傳一律套用的規則
func secretRules() []SanitizeRule {
	return []SanitizeRule{
		{regexp.MustCompile(`(?i)token=\S+`), "token=***"},
		{regexp.MustCompile(`(?i)bearer\s+\S+`), "bearer ***"},
		{regexp.MustCompile(`(?i)api[_-]?key=\S+`), "api_key=***"},
		{regexp.MustCompile(`(?i)password=\S+`), "password=***"},
	}
}

// pathRules 回傳家目錄遮蔽規則
func pathRules() []SanitizeRule {
	var rules []SanitizeRule

	// The running user's home first, so it collapses to "~"
	if home, err := os.UserHomeDir(); err == nil && len(home) > 1 {
		rules = append(rules, SanitizeRule{
			Pattern:     regexp.MustCompile(regexp.QuoteMeta(home)),
			Replacement: "~",
		})
	}

	return append(rules,
		// Windows 使用者路徑 (支援所有磁碟機與 UNC，不區分大小寫)
		SanitizeRule{regexp.MustCompile(`(?i)[A-Z]:\\Users\\[^\\]+`), "***:\\Users\\***"},
		SanitizeRule{regexp.MustCompile(`(?i)\\\\[^\\]+\\[^\\]+\\Users\\[^\\]+`), "\\\\***\\***\\Users\\***"},

		// Unix 家目錄
		SanitizeRule{regexp.MustCompile(`/home/[^/]+`), "/home/***"},
		SanitizeRule{regexp.MustCompile(`/Users/[^/]+`), "/Users/***"},
	)
}

// Sanitize sanitizes a string by applying all patterns
func (s *Sanitizer) Sanitize(input string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := input
	for _, rule := range s.patterns {
		result = rule.Pattern.ReplaceAllString(result, rule.Replacement)
	}
	return result
}

// SanitizeArgs sanitizes logging arguments
func (s *Sanitizer) SanitizeArgs(args []any) []any {
	if len(args) == 0 {
		return args
	}

	result := make([]any, len(args))
	copy(result, args)

	// Process key-value pairs
	for i := 0; i < len(result)-1; i += 2 {
		key, ok := result[i].(string)
		if !ok {
			continue
		}

		var value string
		switch v := result[i+1].(type) {
		case string:
			value = v
		case error:
			value = v.Error()
		default:
			continue
		}

		switch {
		case isSensitiveKey(key):
			result[i+1] = maskValue(value)
		case s.redactPaths:
			result[i+1] = s.Sanitize(value)
		}
	}

	return result
}

// isSensitiveKey 判斷鍵名是否為敏感鍵
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sk := range []string{"password", "token", "secret", "api_key", "apikey", "credential"} {
		if strings.Contains(lowerKey, sk) {
			return true
		}
	}
	return false
}

// maskValue 遮蔽值（保留前後各1字元）
func maskValue(value string) string {
	if len(value) <= 2 {
		return "***"
	}
	if len(value) <= 8 {
		return fmt.Sprintf("%s***", string(value[0]))
	}
	return fmt.Sprintf("%s***%s", string(value[0]), string(value[len(value)-1]))
}

// AddRule 新增自訂過濾規則
func (s *Sanitizer) AddRule(pattern string, replacement string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	s.patterns = append(s.patterns, SanitizeRule{
		Pattern:     re,
		Replacement: replacement,
	})
	return nil
}
