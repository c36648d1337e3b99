package dbclient

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/smpawlowski/covid19/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// buildSQLiteDSN opens the file in WAL mode with a busy timeout so a reader
// and the exporter can share it.
func buildSQLiteDSN(conn *domain.DatabaseConnection) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	for _, k := range sortedKeys(conn.Options) {
		q.Set(k, conn.Options[k])
	}
	return conn.Host + "?" + q.Encode()
}

// buildMySQLDSN constructs a MySQL DSN: user:password@tcp(host:port)/dbname?params.
func buildMySQLDSN(conn *domain.DatabaseConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 3306
	}
	q := url.Values{}
	q.Set("parseTime", "true")
	q.Set("charset", "utf8mb4")
	if conn.SSLMode == "require" {
		q.Set("tls", "true")
	}
	for _, k := range sortedKeys(conn.Options) {
		q.Set(k, conn.Options[k])
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		conn.Username, password, conn.Host, port, conn.Database, q.Encode(),
	)
}

// buildPostgresDSN constructs a lib/pq keyword/value connection string.
func buildPostgresDSN(conn *domain.DatabaseConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts := []string{
		"host=" + quotePQ(conn.Host),
		fmt.Sprintf("port=%d", port),
		"user=" + quotePQ(conn.Username),
		"password=" + quotePQ(password),
		"dbname=" + quotePQ(conn.Database),
		"sslmode=" + sslMode,
	}
	for _, k := range sortedKeys(conn.Options) {
		parts = append(parts, k+"="+quotePQ(conn.Options[k]))
	}
	return strings.Join(parts, " ")
}

// quotePQ quotes a value for a keyword/value DSN when it needs it.
func quotePQ(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
