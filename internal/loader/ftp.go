package loader

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPTimeout is the default dial timeout for FTP-hosted roster archives.
const FTPTimeout = 30 * time.Second

// FetchFTP downloads an ftp:// roster file into dir and returns the local
// path. Some source institutions still publish roster exports only on
// anonymous FTP.
func FetchFTP(ctx context.Context, ftpURL, dir string) (string, error) {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return "", err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(FTPTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return "", eris.Wrap(err, "ftp: dial")
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return "", eris.Wrap(err, "ftp: login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		return "", eris.Wrap(err, "ftp: retrieve")
	}
	defer resp.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "ftp: create dir %s", dir)
	}
	dest := filepath.Join(dir, filepath.Base(path))

	file, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "ftp: create %s", dest)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp); err != nil {
		return "", eris.Wrap(err, "ftp: write file")
	}

	return dest, nil
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", eris.New("ftp: empty path in url")
	}

	return host, path, nil
}
