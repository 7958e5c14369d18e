package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"
)

type testOptions struct {
	Server struct {
		Addr    string        `mapstructure:"addr"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"server"`
	Name string `mapstructure:"name"`

	completed bool
	invalid   bool
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("Server")
	fs.StringVar(&o.Server.Addr, "server.addr", ":8080", "Address.")
	fs.DurationVar(&o.Server.Timeout, "server.timeout", time.Second, "Timeout.")
	fs.StringVar(&o.Name, "name", "default", "Name.")
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.invalid {
		return errors.New("invalid")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigFileFlagPrecedence(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n  timeout: 5s\nname: from-file\n")

	opts := &testOptions{}
	ran := false
	a := NewApp("robopeer-test", "test", WithOptions(opts), WithDefaultValidArgs(), WithRunFunc(func() error {
		ran = true
		return nil
	}))
	a.Command().SetArgs([]string{"--config", path, "--name", "from-flag"})

	require.NoError(t, a.Command().Execute())
	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, ":9090", opts.Server.Addr)
	assert.Equal(t, 5*time.Second, opts.Server.Timeout)
	assert.Equal(t, "from-flag", opts.Name)
}

func TestEnvironmentOverridesConfigFile(t *testing.T) {
	path := writeConfig(t, "name: from-file\n")
	t.Setenv("ROBOPEER_TEST_NAME", "from-env")

	opts := &testOptions{}
	a := NewApp("robopeer-test", "test", WithOptions(opts))
	a.Command().SetArgs([]string{"-c", path})

	require.NoError(t, a.Command().Execute())
	assert.Equal(t, "from-env", opts.Name)
}

func TestMissingExplicitConfigFails(t *testing.T) {
	a := NewApp("robopeer-test", "test", WithOptions(&testOptions{}))
	a.Command().SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")})

	assert.Error(t, a.Command().Execute())
}

func TestValidationFailureStopsRun(t *testing.T) {
	opts := &testOptions{invalid: true}
	a := NewApp("robopeer-test", "test", WithOptions(opts), WithNoConfig(), WithRunFunc(func() error {
		t.Fatal("run must not be called")
		return nil
	}))
	a.Command().SetArgs(nil)

	assert.EqualError(t, a.Command().Execute(), "invalid")
}

func TestDefaultValidArgsRejectsPositional(t *testing.T) {
	a := NewApp("robopeer-test", "test", WithOptions(&testOptions{}), WithNoConfig(), WithDefaultValidArgs())
	a.Command().SetArgs([]string{"extra"})

	assert.Error(t, a.Command().Execute())
}
