package userpage

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"

	"github.com/massmux/phoenixd-lnurl/internal/lnurl"
	"github.com/massmux/phoenixd-lnurl/internal/nostr"
	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const (
	qrSize = 320
	// usernames longer than this get a smaller heading
	longUsername = 10
)

//go:embed static
var templates embed.FS
var splash_tmpl = template.Must(template.ParseFS(templates, "static/lnurl-splash.html"))

type Page struct {
	Username        string
	LNURLAddress    string
	NostrAddress    string
	ProfileImageURL string
	MetaDescription string
	EncodedLNURL    string
	QRCode          template.URL
	SmallerHeading  bool
}

type Service struct {
	page Page
}

// New renders the QR code once; the page only changes with the
// configuration.
func New(l *lnurl.Lnurl, nostrPubkey, profileImageURL, hostname string) (Service, error) {
	encoded, err := l.EncodedLNURL()
	if err != nil {
		return Service{}, fmt.Errorf("could not encode lnurl: %w", err)
	}
	qr, err := QRCode(encoded)
	if err != nil {
		return Service{}, err
	}
	page := Page{
		Username:        l.Username(),
		LNURLAddress:    l.Address(),
		ProfileImageURL: profileImageURL,
		MetaDescription: hostname,
		EncodedLNURL:    encoded,
		QRCode:          qr,
		SmallerHeading:  len(l.Username()) > longUsername,
	}
	if nostrPubkey != "" {
		npub, err := nostr.EncodePublicKey(nostrPubkey)
		if err != nil {
			return Service{}, err
		}
		page.NostrAddress = npub
	}
	return Service{page: page}, nil
}

// QRCode returns a PNG data URI of content.
func QRCode(content string) (template.URL, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, qrSize)
	if err != nil {
		return "", fmt.Errorf("could not render qr code: %w", err)
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}

func (s Service) Page() Page {
	return s.page
}

// SplashHandler serves /lnurl, a tip page showing the lightning address
// and the LNURL as QR code.
func (s Service) SplashHandler(w http.ResponseWriter, r *http.Request) {
	log.Infof("[UserPage] rendering page of %s", s.page.Username)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := splash_tmpl.ExecuteTemplate(w, "lnurl-splash", s.page); err != nil {
		log.Errorf("[UserPage] failed to render template: %v", err)
	}
}
