package sigv4

import (
	"fmt"
	"net/http"
	"time"
)

// Algorithm identifies the signing scheme in the Authorization header.
const Algorithm = "AWS4-HMAC-SHA256"

const (
	// TimeFormat is the X-Amz-Date layout.
	TimeFormat = "20060102T150405Z"
	// ShortTimeFormat is the credential scope date layout.
	ShortTimeFormat = "20060102"
)

// Header names written by Sign.
const (
	HeaderAuthorization = "Authorization"
	HeaderDate          = "X-Amz-Date"
	HeaderSecurityToken = "X-Amz-Security-Token"
	HeaderContentSHA256 = "X-Amz-Content-Sha256"
	HeaderHost          = "Host"
)

// Credentials is the key material used for one signature.
type Credentials struct {
	AccessKeyID  string
	SecretKey    string
	SessionToken string
}

// Profile binds a downstream service to its region and path rule.
type Profile struct {
	Service      string
	Region       string
	PathEncoding PathEncoding
}

var objectStorageServices = map[string]struct{}{
	"s3":               {},
	"s3express":        {},
	"s3-object-lambda": {},
}

// ProfileFor returns the signing profile for service in region. Object
// storage services get PathRaw, everything else PathNormalized.
func ProfileFor(service, region string) Profile {
	encoding := PathNormalized
	if _, ok := objectStorageServices[service]; ok {
		encoding = PathRaw
	}
	return Profile{
		Service:      service,
		Region:       region,
		PathEncoding: encoding,
	}
}

// SigningContext describes one outbound request together with the
// credentials that sign it. It is built per call and never cached.
type SigningContext struct {
	Method string
	// Path is the escaped request path.
	Path string
	// Query is the raw query string without "?".
	Query  string
	Host   string
	Header http.Header
	Body   []byte

	Credentials Credentials
	Time        time.Time
	Profile     Profile
}

// Sign returns the header set to transmit: a copy of sc.Header plus Host,
// X-Amz-Date, X-Amz-Content-Sha256, X-Amz-Security-Token (when a session
// token is present) and Authorization. sc.Header is not modified.
func Sign(sc SigningContext) http.Header {
	if sc.Credentials.AccessKeyID == "" || sc.Credentials.SecretKey == "" {
		panic("sigv4: sign called without access key id and secret key")
	}
	if sc.Host == "" {
		panic("sigv4: sign called without host")
	}
	if sc.Time.IsZero() {
		panic("sigv4: sign called without signing time")
	}

	header := sc.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Del(HeaderAuthorization)

	signingTime := sc.Time.UTC()
	timestamp := signingTime.Format(TimeFormat)
	date := signingTime.Format(ShortTimeFormat)
	payloadHash := PayloadHash(sc.Body)

	header.Set(HeaderHost, sc.Host)
	header.Set(HeaderDate, timestamp)
	header.Set(HeaderContentSHA256, payloadHash)
	if sc.Credentials.SessionToken != "" {
		header.Set(HeaderSecurityToken, sc.Credentials.SessionToken)
	} else {
		header.Del(HeaderSecurityToken)
	}

	canonical := Canonicalize(sc.Method, sc.Path, sc.Query, header, payloadHash, sc.Profile.PathEncoding)
	scope := Scope(date, sc.Profile.Region, sc.Profile.Service)
	key := DeriveKey(sc.Credentials.SecretKey, date, sc.Profile.Region, sc.Profile.Service)
	signature := Signature(key, StringToSign(timestamp, scope, canonical))

	header.Set(HeaderAuthorization, AuthorizationValue(sc.Credentials.AccessKeyID, scope, SignedHeaders(header), signature))

	return header
}

// AuthorizationValue formats the Authorization header value.
func AuthorizationValue(accessKeyID, scope, signedHeaders, signature string) string {
	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		Algorithm, accessKeyID, scope, signedHeaders, signature)
}
