package api

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dutchcoders/go-clamd"
)

// ErrInfected 表示上传文件未通过病毒扫描。
var ErrInfected = errors.New("malicious file detected")

// VirusScanner 在素材进入对象存储前扫描内容。
type VirusScanner interface {
	Scan(r io.Reader) error
}

// ClamdScanner 通过 clamd 的 INSTREAM 扫描。
type ClamdScanner struct {
	addr string
}

func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{addr: addr}
}

func (s *ClamdScanner) Scan(r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := clamd.NewClamd(s.addr).ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range results {
		switch result.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			return fmt.Errorf("%w: %s", ErrInfected, strings.TrimSpace(result.Description))
		default:
			return fmt.Errorf("scan stream: clamd status %s", result.Status)
		}
	}
	return nil
}

// noopScanner 用于未配置 clamd 的开发环境。
type noopScanner struct{}

func (noopScanner) Scan(io.Reader) error { return nil }

// ScannerFor 在 addr 为空时返回不扫描的实现。
func ScannerFor(addr string) VirusScanner {
	if strings.TrimSpace(addr) == "" {
		return noopScanner{}
	}
	return NewClamdScanner(addr)
}
