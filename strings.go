package conformance

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	compiledRegexCache = make(map[string]*regexp.Regexp)
	cacheMutex         = sync.Mutex{}
)

// ValidateStringWithPattern checks if the input string matches the given pattern.
func ValidateStringWithPattern(input string, pattern string) bool {
	compiledRegex, err := getOrCreateCompiledRegex(pattern)
	if err != nil {
		return false
	}

	return compiledRegex.MatchString(input)
}

// getOrCreateCompiledRegex returns a compiled regex from the cache if it exists,
// otherwise it compiles the regex and adds it to the cache.
func getOrCreateCompiledRegex(pattern string) (*regexp.Regexp, error) {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	if cachedRegex, found := compiledRegexCache[pattern]; found {
		return cachedRegex, nil
	}

	compiledRegex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	compiledRegexCache[pattern] = compiledRegex
	return compiledRegex, nil
}

// JoinURL joins a base URL and a path with exactly one separating slash.
func JoinURL(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// StatusCodeKey renders a numeric status code as a response map key.
func StatusCodeKey(statusCode int) string {
	return strconv.Itoa(statusCode)
}

// TransformHTTPCode converts a response entry key to a numeric status code.
// Wildcard buckets such as "2XX" and "default" map to 200.
func TransformHTTPCode(httpCode string) int {
	httpCode = strings.ToLower(httpCode)
	httpCode = strings.Replace(httpCode, "x", "0", -1)

	switch httpCode {
	case "*", "default", "000":
		return 200
	}

	codeInt, err := strconv.Atoi(httpCode)
	if err != nil {
		return 0
	}

	return codeInt
}
