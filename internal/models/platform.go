package models

import (
	"fmt"
	"strings"
)

// Platform identifies a campaign back-office
type Platform string

const (
	PlatformJu          Platform = "ju"
	PlatformTaoQiangGou Platform = "taoqianggou"
	PlatformTaoQingCang Platform = "taoqingcang"
)

// Platforms lists every supported platform
var Platforms = []Platform{PlatformJu, PlatformTaoQiangGou, PlatformTaoQingCang}

// ParsePlatform accepts a platform id or its short prefix (ju, tqg, tqc)
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ju":
		return PlatformJu, nil
	case "taoqianggou", "tqg":
		return PlatformTaoQiangGou, nil
	case "taoqingcang", "tqc":
		return PlatformTaoQingCang, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// FilePrefix is the prefix used for downloaded workbook names
func (p Platform) FilePrefix() string {
	switch p {
	case PlatformTaoQiangGou:
		return "TQG"
	case PlatformTaoQingCang:
		return "TQC"
	}
	return "JU"
}

// DisplayName is the back-office's own name
func (p Platform) DisplayName() string {
	switch p {
	case PlatformJu:
		return "聚划算"
	case PlatformTaoQiangGou:
		return "淘抢购"
	case PlatformTaoQingCang:
		return "淘清仓"
	}
	return string(p)
}
