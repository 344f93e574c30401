// Package repl provides the interactive mode for lettuce-cli.
package repl

import "strings"

// Completer suggests command names for a typed prefix.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer seeded with common commands.
func NewCompleter() *Completer {
	return &Completer{
		commands: []string{
			"GET", "SET", "DEL", "EXISTS", "EXPIRE", "TTL", "TYPE",
			"INCR", "DECR", "APPEND", "STRLEN",
			"LPUSH", "RPUSH", "LPOP", "RPOP", "LRANGE", "LLEN",
			"HSET", "HGET", "HDEL", "HGETALL", "HKEYS",
			"SADD", "SREM", "SMEMBERS", "SCARD",
			"ZADD", "ZRANGE", "ZSCORE", "ZREM",
			"CLUSTER SLOTS", "CLUSTER INFO", "CLUSTER NODES",
			"PING", "ECHO", "INFO",
			"help", "exit", "quit",
		},
	}
}

// Complete returns all commands starting with prefix, ignoring case.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	up := strings.ToUpper(prefix)
	for _, cmd := range c.commands {
		if strings.HasPrefix(strings.ToUpper(cmd), up) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
