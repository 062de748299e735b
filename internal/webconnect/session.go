package webconnect

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/better-wallet/webconnect/pkg/errors"
)

// PairingCodePrefix marks codes shown by the Safe web app for desktop pairing
const PairingCodePrefix = "safe-wc:"

// ClientMeta is the display metadata a peer announces
type ClientMeta struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Icons       []string `json:"icons"`
	URL         string   `json:"url"`
	Scheme      string   `json:"scheme,omitempty"`
}

// DAppInfo is the dApp side of a wire session
type DAppInfo struct {
	PeerID   string     `json:"peerId"`
	PeerMeta ClientMeta `json:"peerMeta"`
	ChainID  *int       `json:"chainId,omitempty"`
	Approved *bool      `json:"approved,omitempty"`
}

// WalletInfo is the wallet side of a wire session
type WalletInfo struct {
	Approved bool       `json:"approved"`
	Accounts []string   `json:"accounts"`
	ChainID  int        `json:"chainId"`
	PeerID   string     `json:"peerId"`
	PeerMeta ClientMeta `json:"peerMeta"`
}

// Session is the WalletConnect representation of a connection
type Session struct {
	URL        WCURL      `json:"url"`
	DAppInfo   DAppInfo   `json:"dAppInfo"`
	WalletInfo WalletInfo `json:"walletInfo"`
}

// WCURL is a parsed wc: URI
type WCURL struct {
	Topic   string `json:"topic"`
	Version string `json:"version"`
	Bridge  string `json:"bridge,omitempty"`
	Key     string `json:"key"`
}

// ParseWCURL parses "wc:{topic}@{version}?bridge=..&key=.." (v1) and
// "wc:{topic}@2?relay-protocol=..&symKey=.." (v2).
func ParseWCURL(raw string) (WCURL, error) {
	rest, ok := strings.CutPrefix(raw, "wc:")
	if !ok {
		return WCURL{}, fmt.Errorf("missing wc: scheme")
	}

	head, query, _ := strings.Cut(rest, "?")
	topic, version, ok := strings.Cut(head, "@")
	if !ok || topic == "" || version == "" {
		return WCURL{}, fmt.Errorf("expected {topic}@{version}")
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return WCURL{}, fmt.Errorf("invalid query: %w", err)
	}

	u := WCURL{Topic: topic, Version: version}
	if version == "1" {
		u.Bridge = params.Get("bridge")
		u.Key = params.Get("key")
		if u.Bridge == "" {
			return WCURL{}, fmt.Errorf("missing bridge")
		}
	} else {
		u.Bridge = params.Get("relay-protocol")
		u.Key = params.Get("symKey")
	}
	if u.Key == "" {
		return WCURL{}, fmt.Errorf("missing key")
	}
	return u, nil
}

// String encodes the URL back to its wc: form
func (u WCURL) String() string {
	params := url.Values{}
	if u.Version == "1" {
		params.Set("bridge", u.Bridge)
		params.Set("key", u.Key)
	} else {
		if u.Bridge != "" {
			params.Set("relay-protocol", u.Bridge)
		}
		params.Set("symKey", u.Key)
	}
	return fmt.Sprintf("wc:%s@%s?%s", u.Topic, u.Version, params.Encode())
}

// ParsePairingCode accepts a scanned pairing code or a plain wc: URI
func ParsePairingCode(code string) (WCURL, error) {
	code = strings.TrimSpace(code)
	if strings.HasPrefix(code, PairingCodePrefix) {
		code = strings.TrimPrefix(code, "safe-")
	}

	u, err := ParseWCURL(code)
	if err != nil {
		return WCURL{}, apperrors.ErrInvalidPairingCode.Wrap(err)
	}
	return u, nil
}
