package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/jonathan/portfolio-pipeline/internal/fileval"
)

// scannerAgents are User-Agent fragments of automated vulnerability scanners
var scannerAgents = []string{"sqlmap", "nikto", "nmap", "masscan", "zgrab"}

// upload is a parsed multipart upload
type upload struct {
	content     []byte
	filename    string
	contentType string
	options     map[string]any
}

// requestError is a client error detected before the pipeline runs
type requestError struct {
	code    string
	message string
}

func (e *requestError) Error() string {
	return e.message
}

// ParseTrustedProxies parses proxy addresses given as single IPs or CIDR ranges
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// ClientIdentifier returns the address of the client that sent r. X-Forwarded-For is only read
// when the direct peer is a trusted proxy; hops are walked right to left and the first one that
// is not itself trusted wins. Without trusted proxies the header is ignored.
func ClientIdentifier(r *http.Request, trusted []netip.Prefix) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !isTrusted(peer, trusted) {
		return peer
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		client = hop
		if !isTrusted(hop, trusted) {
			break
		}
	}
	return client
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ValidateRequestHeaders rejects uploads without a multipart body and requests from known
// scanners.
func ValidateRequestHeaders(r *http.Request) error {
	agent := strings.ToLower(r.UserAgent())
	for _, scanner := range scannerAgents {
		if strings.Contains(agent, scanner) {
			return &requestError{code: CodeSuspiciousClient, message: "Suspicious user agent detected"}
		}
	}

	if r.Method == http.MethodPost {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			return &requestError{code: CodeInvalidRequest, message: "File uploads must use multipart/form-data"}
		}
	}
	return nil
}

// parseUpload reads the "file" part and the optional "options" JSON field of a multipart request
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	if err := ValidateRequestHeaders(r); err != nil {
		return nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &requestError{code: fileval.CodeFileTooLarge.Upper(), message: fmt.Sprintf("Upload exceeds %d bytes", s.maxUpload)}
		}
		return nil, &requestError{code: CodeInvalidRequest, message: "Invalid multipart body: " + err.Error()}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &requestError{code: CodeMissingFile, message: "A file field is required"}
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, &requestError{code: CodeInvalidRequest, message: "Failed to read uploaded file"}
	}

	up := &upload{
		content:     content,
		filename:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
	}

	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &up.options); err != nil {
			// options degrade to defaults inside the pipeline
			s.logger.Debug("ignoring malformed options", "error", err)
			up.options = nil
		}
	}
	return up, nil
}
