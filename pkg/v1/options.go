package v1

import "github.com/sirupsen/logrus"

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	root     string
	readOnly bool
	logger   *logrus.Logger
}

// WithRoot sets the repository directory. Defaults to the working directory.
func WithRoot(dir string) Option {
	return func(c *clientConfig) {
		c.root = dir
	}
}

// WithReadOnly opens the ledger without write access. Sync is unavailable.
func WithReadOnly() Option {
	return func(c *clientConfig) {
		c.readOnly = true
	}
}

// WithLogger replaces the workspace log file.
func WithLogger(log *logrus.Logger) Option {
	return func(c *clientConfig) {
		c.logger = log
	}
}
