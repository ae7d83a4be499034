package totpx

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"
	"strconv"
	"strings"

	"github.com/pquerna/otp"
)

// DefaultQRSize is the edge length in pixels of rendered QR codes.
const DefaultQRSize = 200

const dataURIPrefix = "data:image/png;base64,"

// BuildProvisioningURI formats an otpauth://totp URI understood by
// authenticator apps. The issuer, when set, prefixes the label and is repeated
// as a query parameter.
func BuildProvisioningURI(label, secret, issuer string, digits int, period uint, algorithm string) (string, error) {
	if strings.TrimSpace(label) == "" {
		return "", fmt.Errorf("%w: label is required", ErrConfiguration)
	}
	if err := ValidateSecret(secret); err != nil {
		return "", err
	}
	alg, err := ParseAlgorithm(algorithm)
	if err != nil {
		return "", err
	}
	d, err := parseDigits(digits)
	if err != nil {
		return "", err
	}
	if period == 0 {
		period = DefaultPeriod
	}

	v := url.Values{}
	v.Set("secret", strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "=")))
	v.Set("algorithm", alg.String())
	v.Set("digits", strconv.Itoa(d.Length()))
	v.Set("period", strconv.FormatUint(uint64(period), 10))

	path := "/" + label
	if issuer != "" {
		v.Set("issuer", issuer)
		path = "/" + issuer + ":" + label
	}

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     path,
		RawQuery: v.Encode(),
	}
	return u.String(), nil
}

// RenderQRCode encodes uri as a size x size PNG. size <= 0 selects
// DefaultQRSize.
func RenderQRCode(uri string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: parse provisioning uri: %w", ErrConfiguration, err)
	}
	img, err := key.Image(size, size)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return buf.Bytes(), nil
}

// QRCodeDataURI renders uri and returns it as a data:image/png;base64 URI
// suitable for an <img src>.
func QRCodeDataURI(uri string, size int) (string, error) {
	raw, err := RenderQRCode(uri, size)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(raw), nil
}
