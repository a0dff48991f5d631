// Package config loads the JSON configuration of the swap daemon and CLI:
// server, storage, task queue, chain endpoints, swap contracts, wallet
// sources, logging, metrics and alerting. Missing fields fall back to
// defaults targeting Base mainnet.
package config
