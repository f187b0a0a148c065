package db

// Config selects the database dialect and tunes the connection pool.
// Type is one of postgres, mysql or sqlite; sqlite treats Name as the DSN.
type Config struct {
	Type     string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}
