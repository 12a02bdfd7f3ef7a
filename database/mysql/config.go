package mysql

// Config represents the root of the mysql config.
type Config struct {
	Master   connection   `yaml:"master"`
	Replicas []connection `yaml:"replicas"`
	ConnCfg  connCfg      `yaml:"conn_cfg"`
	LogLevel int          `yaml:"log_level"`
}

type connection struct {
	Host     string `yaml:"host"`
	Port     uint   `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
}

type connCfg struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
}
