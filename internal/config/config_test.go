package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func setMinIOCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	setMinIOCredentials(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "/designer", cfg.API.DesignerPath)
	assert.Equal(t, 30, cfg.API.VerifyLimitPerHour)
	assert.Equal(t, 210.0, cfg.Print.SheetWidthMM)
	assert.Equal(t, 297.0, cfg.Print.SheetHeightMM)
	assert.Equal(t, 10, cfg.Worker.Concurrency)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadReadsEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	setMinIOCredentials(t)
	t.Setenv("API_PORT", "9000")
	t.Setenv("PRINT_MARGIN_MM", "7.5")
	t.Setenv("WORKER_CONCURRENCY", "3")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, 7.5, cfg.Print.MarginMM)
	assert.Equal(t, 3, cfg.Worker.Concurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.OriginList())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"missing minio secret": {"MINIO_SECRET_ACCESS_KEY": ""},
		"negative margin":      {"PRINT_MARGIN_MM": "-1"},
		"zero scale":           {"RENDER_DEFAULT_SCALE": "0"},
		"no worker":            {"WORKER_CONCURRENCY": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			chdir(t, t.TempDir())
			setMinIOCredentials(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "academy", User: "u", Password: "p", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=academy sslmode=disable", d.DSN())
}
