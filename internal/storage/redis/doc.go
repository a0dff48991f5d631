// Package redis 提供基于 go-redis 的共享连接与代币精度缓存。
package redis
