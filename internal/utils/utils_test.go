package utils

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/tsarchive/internal/models"
	"github.com/spf13/afero"
)

func TestHeaderValidator_ValidateHeader(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		headerValue string
		expectError bool
	}{
		{"合法头部", "User-Agent", "Mozilla/5.0", false},
		{"合法头部-自定义", "X-Archiv-Lauf", "2012", false},
		{"禁止头部-Host", "Host", "www.tagesschau.de", true},
		{"禁止头部-小写", "content-length", "123", true},
		{"禁止头部-Accept-Encoding", "Accept-Encoding", "identity", true},
		{"非法名称-空格", "User Agent", "x", true},
		{"非法名称-空字符串", "", "x", true},
		{"非法值-控制字符", "X-Bad", "value\x00with\x01null", true},
		{"非法值-超长", "X-TooLong", strings.Repeat("a", MaxHeaderValueLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHeader(tt.headerName, tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
			var verr *models.ValidationError
			if err != nil && !errors.As(err, &verr) {
				t.Errorf("错误类型 = %T, want *models.ValidationError", err)
			}
		})
	}
}

func TestHeaderValidator_Validate(t *testing.T) {
	validator := NewHeaderValidator()

	ok := http.Header{}
	ok.Set("Accept-Language", "de-DE")
	if err := validator.Validate(ok); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	bad := map[string]string{"Cookie": "a=b", "Connection": "close"}
	if err := validator.ValidateMap(bad); err == nil {
		t.Error("包含禁止头部时应返回错误")
	}
}

func TestParseHeaderFlag(t *testing.T) {
	tests := []struct {
		raw       string
		wantName  string
		wantValue string
		wantErr   bool
	}{
		{"Accept-Language: de-DE", "Accept-Language", "de-DE", false},
		{"X-Token:abc:def", "X-Token", "abc:def", false},
		{"  Cookie :  a=b  ", "Cookie", "a=b", false},
		{"ohne-doppelpunkt", "", "", true},
		{"Host: example.com", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			name, value, err := ParseHeaderFlag(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHeaderFlag() error = %v, wantErr %v", err, tt.wantErr)
			}
			if name != tt.wantName || value != tt.wantValue {
				t.Errorf("ParseHeaderFlag() = (%q, %q), want (%q, %q)", name, value, tt.wantName, tt.wantValue)
			}
		})
	}
}

func TestHeaderRedactor(t *testing.T) {
	redactor := NewHeaderRedactor()

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"Authorization", "Bearer eyJhbGciOi", "Bearer ***"},
		{"X-Api-Key", "1234567890abcdef", "1234***cdef"},
		{"X-Secret", "kurz", "***"},
		{"Accept-Language", "de-DE", "de-DE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactor.RedactHeaderValue(tt.name, tt.value); got != tt.want {
				t.Errorf("RedactHeaderValue() = %q, want %q", got, tt.want)
			}
		})
	}

	redacted := redactor.RedactMap(map[string]string{"Authorization": "Bearer x", "Cookie": "consent=1", "Accept-Language": "de-DE"})
	if redacted["Authorization"] != "Bearer ***" || redacted["Cookie"] != "***" || redacted["Accept-Language"] != "de-DE" {
		t.Errorf("RedactMap() = %v", redacted)
	}

	h := http.Header{}
	h.Set("X-Auth-Token", "geheim")
	h.Set("Accept-Language", "de-DE")
	s := redactor.RedactToString(h)
	if strings.Contains(s, "geheim") {
		t.Errorf("RedactToString() 泄露了敏感值: %s", s)
	}
	if s != "Accept-Language: de-DE, X-Auth-Token: ***" {
		t.Errorf("RedactToString() = %q", s)
	}
}

func loadReport(t *testing.T, path string) (*models.CrawlReport, error) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report models.CrawlReport
	if err := report.FromJSON(data); err != nil {
		return nil, err
	}
	return &report, nil
}

func TestReporter(t *testing.T) {
	dir := t.TempDir()
	r := NewReporter(afero.NewOsFs(), dir)

	report := &models.CrawlReport{
		RunID:     "lauf-1",
		StartDate: "2012-03-07",
		EndDate:   "2012-03-08",
		Outcome:   "completed",
		Stats:     models.CrawlStats{Days: 2, Persisted: 10, Undated: 1},
		FailedPages: []models.FailedPage{
			{URL: "https://www.tagesschau.de/a.html", Role: models.RoleArticle, ErrorType: "fetch", ErrorMsg: "404"},
		},
	}

	path, err := r.GenerateReport(report)
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if path != r.ReportPath("lauf-1") {
		t.Errorf("path = %s", path)
	}

	loaded, err := loadReport(t, path)
	if err != nil {
		t.Fatalf("读取报告失败: %v", err)
	}
	if loaded.Stats.Persisted != 10 || loaded.Outcome != "completed" || len(loaded.FailedPages) != 1 {
		t.Errorf("读取的报告不一致: %+v", loaded)
	}

	// 重新生成覆盖原报告, 不留下临时文件
	report.Outcome = "interrupted"
	if _, err := r.GenerateReport(report); err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("报告目录应只有一个文件, 实际 %d 个", len(entries))
	}
	if loaded, err := loadReport(t, path); err != nil || loaded.Outcome != "interrupted" {
		t.Errorf("读取报告 = %+v, %v", loaded, err)
	}
}

func TestReporter_WriteFailure(t *testing.T) {
	r := NewReporter(afero.NewReadOnlyFs(afero.NewMemMapFs()), "reports")
	_, err := r.GenerateReport(&models.CrawlReport{RunID: "lauf-2"})
	var perr *models.PersistenceError
	if !errors.As(err, &perr) {
		t.Errorf("GenerateReport() error = %v, want *models.PersistenceError", err)
	}
}

func TestNewProgressBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(3, "归档", &buf)
	for i := 0; i < 3; i++ {
		if err := bar.Add(1); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if !bar.IsFinished() {
		t.Error("进度条应已完成")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(1500 * time.Millisecond); got != "2s" {
		t.Errorf("FormatDuration() = %q", got)
	}
	if got := FormatDuration(250 * time.Millisecond); got != "250ms" {
		t.Errorf("FormatDuration() = %q", got)
	}
}
