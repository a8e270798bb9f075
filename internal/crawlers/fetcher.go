package crawlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/RecoveryAshes/tsarchive/internal/models"
	"github.com/RecoveryAshes/tsarchive/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// DefaultUserAgent 默认User-Agent
const DefaultUserAgent = "Mozilla/5.0 (compatible; tsarchive/1.0; +https://github.com/RecoveryAshes/tsarchive)"

// CollyFetcher 基于Colly的抓取器
//
// 每次抓取都克隆一个同步collector: 克隆体共享HTTP后端(限速规则、robots缓存),
// 但回调是独立的, 所以多个worker可以并发调用 Fetch。
type CollyFetcher struct {
	base    *colly.Collector
	headers map[string]string
}

// NewCollyFetcher 创建抓取器
func NewCollyFetcher(config models.CrawlConfig) (*CollyFetcher, error) {
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)

	// 0 表示不限制响应体大小
	c.MaxBodySize = config.MaxBodySizeMB * 1024 * 1024
	c.IgnoreRobotsTxt = !config.RespectRobotsTxt

	if config.RequestTimeout > 0 {
		c.SetRequestTimeout(config.RequestTimeout)
	}

	parallelism := config.Concurrency
	if parallelism < 1 {
		parallelism = 1
	}
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
		Delay:       config.Delay,
		RandomDelay: config.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("设置限速规则失败: %w", err)
	}

	utils.Debugf("抓取器: 并发=%d, 延迟=%s, 随机延迟=%s, 超时=%s, robots.txt=%v",
		parallelism, config.Delay, config.RandomDelay, config.RequestTimeout, config.RespectRobotsTxt)

	headers := make(map[string]string, len(config.Headers)+1)
	headers["Accept-Encoding"] = "gzip, deflate, br"
	custom := make(http.Header, len(config.Headers))
	for k, v := range config.Headers {
		headers[k] = v
		custom.Set(k, v)
	}
	if err := utils.NewHeaderValidator().Validate(custom); err != nil {
		return nil, fmt.Errorf("自定义请求头无效: %w", err)
	}
	if len(custom) > 0 {
		utils.Debugf("自定义请求头: %s", utils.NewHeaderRedactor().RedactToString(custom))
	}

	return &CollyFetcher{base: c, headers: headers}, nil
}

// Fetch 抓取URL, 返回重定向后的最终URL和解码后的响应体
// 非成功状态码、超时、robots.txt拒绝等都返回 *models.FetchError
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*models.FetchResult, error) {
	c := f.base.Clone()
	c.Context = ctx

	var (
		result *models.FetchResult
		status int
	)

	c.OnRequest(func(r *colly.Request) {
		for k, v := range f.headers {
			r.Headers.Set(k, v)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		finalURL := r.Request.URL.String()
		body := r.Body

		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decompressed, err := decompressBody(encoding, r.Body)
			if err != nil {
				// 解压失败,仍然使用原始body
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", finalURL, encoding, err)
			} else {
				body = decompressed
			}
		}

		result = &models.FetchResult{
			URL:         finalURL,
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        body,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, &models.FetchError{URL: rawURL, StatusCode: status, Cause: err}
	}
	if result == nil {
		return nil, &models.FetchError{URL: rawURL, Cause: errors.New("未收到响应")}
	}
	return result, nil
}

// decompressBody 根据Content-Encoding解压响应体
// Colly 已经处理过 gzip, 这里只在内容仍带有gzip魔数时再解一次
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip", "x-gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
