package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/sys/unix"
)

const relayTimeout = 10 * time.Second

// CheckRootAccess verifies that the monitored root exists and can be listed.
// Write access is not required.
func CheckRootAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured (set run.root or pass --path)"}
	}
	if _, err := statDir(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if _, err := statDir(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func statDir(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("does not exist")
		}
		return nil, fmt.Errorf("stat: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("is not a directory")
	}
	return info, nil
}

// CheckSMTPRelay connects to the relay and negotiates STARTTLS without
// authenticating or sending anything.
func CheckSMTPRelay(ctx context.Context, host string, port int) Result {
	const name = "SMTP relay"
	host = strings.TrimSpace(host)
	if host == "" {
		return Result{Name: name, Detail: "missing host"}
	}
	address := fmt.Sprintf("%s:%d", host, port)

	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(relayTimeout),
	)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", address, err)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()
	if err := client.DialWithContext(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", address, err)}
	}
	_ = client.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (STARTTLS ok)", address)}
}
