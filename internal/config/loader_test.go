package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sclaridg/bio-610B/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_Load(t *testing.T) {
	convey.Convey("Given a clean environment", t, func() {
		os.Unsetenv("BIO610B_CONFIG")

		convey.Convey("When loading without overrides", func() {
			cfg, err := config.Load()
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Model, convey.ShouldEqual, "ar1")
			convey.So(cfg.Chains, convey.ShouldEqual, 4)
		})

		convey.Convey("When env vars override fields", func() {
			t.Setenv("BIO610B_MODEL", "mixture")
			t.Setenv("BIO610B_MODE", "optimize")
			t.Setenv("BIO610B_TRIALS", "5")

			cfg, err := config.Load()
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Model, convey.ShouldEqual, "mixture")
			convey.So(cfg.Mode, convey.ShouldEqual, "optimize")
			convey.So(cfg.Trials, convey.ShouldEqual, 5)
		})

		convey.Convey("When a YAML file provides values and env overrides them", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			yaml := "model: mixture\ngroups: 4\nseed: 99\n"
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)
			t.Setenv("BIO610B_CONFIG", path)
			t.Setenv("BIO610B_GROUPS", "6")

			cfg, err := config.Load()
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Model, convey.ShouldEqual, "mixture")
			convey.So(cfg.Groups, convey.ShouldEqual, 6)
			convey.So(cfg.Seed, convey.ShouldEqual, 99)
		})

		convey.Convey("When the config file does not exist", func() {
			t.Setenv("BIO610B_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load()
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a field is invalid", func() {
			t.Setenv("BIO610B_MODE", "guess")
			_, err := config.Load()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When numeric bounds are violated", func() {
			t.Setenv("BIO610B_NOMINAL_INTERVAL", "1.5")
			_, err := config.Load()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
