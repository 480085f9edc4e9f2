package proxy

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/config"
)

const forwardTimeout = 30 * time.Second

// Upstream - куда пересылать запросы: напрямую или через Burp Suite
type Upstream struct {
	host    string
	port    string
	enabled bool
	client  *http.Client
}

// NewUpstream создает клиент пересылки. Пустой адрес Burp - прямое соединение.
func NewUpstream(cfg config.BurpConfig) *Upstream {
	u := &Upstream{
		host:    cfg.Host,
		port:    cfg.Port,
		enabled: cfg.Host != "" && cfg.Port != "",
	}

	transport := &http.Transport{
		// перехватывающий прокси не проверяет сертификаты целей, как и Burp
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		// сжатие не снимаем: ответ сохраняется как пришёл
		DisableCompression: true,
	}

	if u.enabled {
		proxyURL, _ := url.Parse(fmt.Sprintf("http://%s", net.JoinHostPort(cfg.Host, cfg.Port)))
		transport.Proxy = http.ProxyURL(proxyURL)
		log.Info().Msgf("📡 Burp Suite: включен (%s:%s)", cfg.Host, cfg.Port)
	} else {
		log.Info().Msg("📡 Burp Suite: выключен (адрес не указан)")
	}

	u.client = &http.Client{
		Transport: transport,
		Timeout:   forwardTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // Не следуем за редиректами автоматически
		},
	}
	return u
}

// Client возвращает HTTP клиент пересылки
func (u *Upstream) Client() *http.Client {
	return u.client
}

// RouteInfo - описание маршрута для логирования
func (u *Upstream) RouteInfo() string {
	if u.enabled {
		return fmt.Sprintf("через Burp (%s:%s)", u.host, u.port)
	}
	return "напрямую"
}

func (u *Upstream) IsEnabled() bool {
	return u.enabled
}
