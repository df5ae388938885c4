// Package testenv starts the database, the Authorizer and the cmdb server
// as testcontainers for integration tests and local development.
package testenv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/localnerve/jam-build-cmdb/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Options select and configure the containers to start
type Options struct {
	DBType         string
	DBImage        string
	DBAlias        string
	DBPort         string
	DBRootPassword string
	DBDatabase     string
	DBAppUser      string
	DBAppPassword  string
	DBReadUser     string
	DBReadPassword string

	WithAuthorizer   bool
	AuthzImage       string
	AuthzPort        string
	AuthzDatabase    string
	AuthzClientID    string
	AuthzAdminSecret string

	WithServer   bool
	ServerImage  string
	ServerPort   string
	BuildContext string
	Debug        bool
}

// OptionsFromEnv reads Options from the environment, defaulting to a
// MariaDB-only setup
func OptionsFromEnv() Options {
	o := Options{
		DBType:           getEnv("DB_TYPE", "mariadb"),
		DBAlias:          getEnv("DB_HOST", "db"),
		DBRootPassword:   getEnv("DB_ROOT_PASSWORD", "rootpassword"),
		DBDatabase:       getEnv("DB_DATABASE", "cmdb"),
		DBAppUser:        getEnv("DB_APP_USER", "cmdb_app"),
		DBAppPassword:    getEnv("DB_APP_PASSWORD", "cmdb_app_password"),
		WithAuthorizer:   os.Getenv("AUTHZ_IMAGE") != "",
		AuthzImage:       os.Getenv("AUTHZ_IMAGE"),
		AuthzPort:        getEnv("AUTHZ_PORT", "8080"),
		AuthzDatabase:    getEnv("AUTHZ_DATABASE", "authorizer"),
		AuthzClientID:    getEnv("AUTHZ_CLIENT_ID", "cmdb-test"),
		AuthzAdminSecret: getEnv("AUTHZ_ADMIN_SECRET", "admin-secret"),
		ServerImage:      getEnv("CMDB_IMAGE", "jam-build-cmdb-test:latest"),
		ServerPort:       getEnv("PORT", "3000"),
		BuildContext:     getEnv("TESTCONTAINERS_BUILD_CONTEXT", "."),
		Debug:            os.Getenv("DEBUG_CONTAINER") == "true",
	}
	o.WithServer = o.WithAuthorizer && os.Getenv("CMDB_SERVER") != "false"
	switch o.DBType {
	case "postgres":
		o.DBImage = getEnv("DB_IMAGE", "postgres:16-alpine")
		o.DBPort = getEnv("DB_PORT", "5432")
	default:
		o.DBImage = getEnv("DB_IMAGE", "mariadb:11")
		o.DBPort = getEnv("DB_PORT", "3306")
	}
	o.DBReadUser = getEnv("DB_READ_USER", o.DBAppUser)
	o.DBReadPassword = getEnv("DB_READ_PASSWORD", o.DBAppPassword)
	return o
}

// Environment is a running set of containers
type Environment struct {
	Options Options

	Network    *testcontainers.DockerNetwork
	DB         testcontainers.Container
	Authorizer testcontainers.Container
	Server     testcontainers.Container
	Builder    testcontainers.Container

	// Host-reachable endpoints
	DBHost   string
	DBPort   string
	AuthzURL string
	BaseURL  string

	logf func(format string, args ...any)
}

// Start creates the network and containers. On failure everything already
// started is terminated. logf may be nil.
func Start(ctx context.Context, opts Options, logf func(format string, args ...any)) (*Environment, error) {
	if logf == nil {
		logf = log.Printf
	}
	env := &Environment{Options: opts, logf: logf}
	fail := func(err error, what string) (*Environment, error) {
		_ = env.Terminate(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("%s: %w", what, err)
	}

	nw, err := network.New(ctx)
	if err != nil {
		return fail(err, "failed to create network")
	}
	env.Network = nw

	if err := env.startDB(ctx); err != nil {
		return fail(err, "failed to start database")
	}
	if opts.WithAuthorizer {
		if err := env.startAuthorizer(ctx); err != nil {
			return fail(err, "failed to start Authorizer")
		}
	}
	if opts.WithServer {
		if err := env.startServer(ctx); err != nil {
			return fail(err, "failed to start cmdb server")
		}
	}

	logf("Test environment started: db=%s:%s authz=%s server=%s", env.DBHost, env.DBPort, env.AuthzURL, env.BaseURL)
	return env, nil
}

// Terminate stops every started container and removes the network
func (e *Environment) Terminate(ctx context.Context) error {
	var errs []error
	for _, c := range []struct {
		name string
		c    testcontainers.Container
	}{
		{"cmdb server", e.Server},
		{"cmdb builder", e.Builder},
		{"Authorizer", e.Authorizer},
		{"database", e.DB},
	} {
		if c.c == nil {
			continue
		}
		if err := c.c.Terminate(ctx); err != nil {
			e.logf("Failed to terminate %s: %v", c.name, err)
			errs = append(errs, err)
		}
	}
	if e.Network != nil {
		if err := e.Network.Remove(ctx); err != nil {
			e.logf("Failed to remove network: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns a configuration that reaches the database container from
// the host
func (e *Environment) Config() *config.Config {
	o := e.Options
	authzURL := e.AuthzURL
	if authzURL == "" {
		authzURL = "http://localhost:" + o.AuthzPort
	}
	return &config.Config{
		Port:                  o.ServerPort,
		RequestTimeout:        30 * time.Second,
		DBType:                o.DBType,
		DBHost:                e.DBHost,
		DBPort:                e.DBPort,
		DBDatabase:            o.DBDatabase,
		DBAppUser:             o.DBAppUser,
		DBAppPassword:         o.DBAppPassword,
		DBAppConnectionLimit:  5,
		DBReadUser:            o.DBReadUser,
		DBReadPassword:        o.DBReadPassword,
		DBReadConnectionLimit: 5,
		DBLogLevel:            "warn",
		CascadeMode:           config.CascadeModeTransaction,
		AuthzURL:              authzURL,
		AuthzClientID:         o.AuthzClientID,
	}
}

func (e *Environment) startDB(ctx context.Context) error {
	o := e.Options
	port, err := nat.NewPort("tcp", o.DBPort)
	if err != nil {
		return err
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          o.DBImage,
			ExposedPorts:   []string{string(port)},
			Env:            dbInitEnv(o),
			WaitingFor:     wait.ForListeningPort(port).WithStartupTimeout(90 * time.Second),
			Networks:       []string{e.Network.Name},
			NetworkAliases: map[string][]string{e.Network.Name: {o.DBAlias}},
		},
		Started: true,
	})
	if err != nil {
		return err
	}
	e.DB = c

	if e.DBHost, err = c.Host(ctx); err != nil {
		return err
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return err
	}
	e.DBPort = mapped.Port()

	switch o.DBType {
	case "mysql", "mariadb":
		return e.initMySQL(ctx)
	}
	return nil
}

func dbInitEnv(o Options) map[string]string {
	switch o.DBType {
	case "postgres":
		return map[string]string{
			"POSTGRES_PASSWORD": o.DBAppPassword,
			"POSTGRES_USER":     o.DBAppUser,
			"POSTGRES_DB":       o.DBDatabase,
		}
	default:
		return map[string]string{
			"MYSQL_ROOT_PASSWORD": o.DBRootPassword,
			"MYSQL_DATABASE":      o.DBDatabase,
			"MYSQL_USER":          o.DBAppUser,
			"MYSQL_PASSWORD":      o.DBAppPassword,
		}
	}
}

// initMySQL creates the Authorizer database and the reader account
func (e *Environment) initMySQL(ctx context.Context) error {
	o := e.Options
	dsn := mysql.NewConfig()
	dsn.User = "root"
	dsn.Passwd = o.DBRootPassword
	dsn.Net = "tcp"
	dsn.Addr = e.DBHost + ":" + e.DBPort

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	// The port listens before the server accepts logins
	for i := 0; i < 30; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		return fmt.Errorf("database not ready after 30 seconds: %w", err)
	}

	statements := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", o.DBDatabase),
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", o.AuthzDatabase),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%'", o.DBDatabase, o.DBAppUser),
	}
	if o.DBReadUser != o.DBAppUser {
		statements = append(statements,
			fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", o.DBReadUser, o.DBReadPassword),
			fmt.Sprintf("GRANT SELECT ON `%s`.* TO '%s'@'%%'", o.DBDatabase, o.DBReadUser),
		)
	}
	statements = append(statements, "FLUSH PRIVILEGES")
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: when executing > %s", err, stmt)
		}
	}
	return nil
}

func (e *Environment) startAuthorizer(ctx context.Context) error {
	o := e.Options
	const alias = "authorizer"
	port, err := nat.NewPort("tcp", o.AuthzPort)
	if err != nil {
		return err
	}

	databaseURL := fmt.Sprintf("root:%s@tcp(%s:%s)/%s", o.DBRootPassword, o.DBAlias, o.DBPort, o.AuthzDatabase)
	if o.DBType == "postgres" {
		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s", o.DBAppUser, o.DBAppPassword, o.DBAlias, o.DBPort, o.DBDatabase)
	}
	logLevel := "info"
	if o.Debug {
		logLevel = "debug"
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        o.AuthzImage,
			ExposedPorts: []string{string(port)},
			Env: map[string]string{
				"ENV":           "production",
				"CLIENT_ID":     o.AuthzClientID,
				"PORT":          o.AuthzPort,
				"DATABASE_TYPE": o.DBType,
				"DATABASE_NAME": o.AuthzDatabase,
				"DATABASE_URL":  databaseURL,
				"ADMIN_SECRET":  o.AuthzAdminSecret,
				"ROLES":         "admin,user",
				"DEFAULT_ROLES": "user",
				"LOG_LEVEL":     logLevel,
			},
			WaitingFor:     wait.ForLog("Authorizer running at PORT:").WithStartupTimeout(30 * time.Second),
			Networks:       []string{e.Network.Name},
			NetworkAliases: map[string][]string{e.Network.Name: {alias}},
		},
		Started: true,
	})
	if err != nil {
		return err
	}
	e.Authorizer = c

	host, err := c.Host(ctx)
	if err != nil {
		return err
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return err
	}
	e.AuthzURL = fmt.Sprintf("http://%s:%s", host, mapped.Port())
	return nil
}

func (e *Environment) startServer(ctx context.Context) error {
	o := e.Options
	port, err := nat.NewPort("tcp", o.ServerPort)
	if err != nil {
		return err
	}

	exposed := []string{string(port)}
	if o.Debug {
		exposed = append(exposed, "2345/tcp")
	}

	var waitFor wait.Strategy = wait.ForHTTP("/metrics").WithPort(port).WithStartupTimeout(60 * time.Second)
	if o.Debug {
		waitFor = wait.ForLog("API server listening at: [::]:2345").WithStartupTimeout(5 * time.Minute)
	}

	req := testcontainers.ContainerRequest{
		ExposedPorts: exposed,
		Env: map[string]string{
			"DB_TYPE":          o.DBType,
			"DB_HOST":          o.DBAlias,
			"DB_PORT":          o.DBPort,
			"DB_DATABASE":      o.DBDatabase,
			"DB_APP_USER":      o.DBAppUser,
			"DB_APP_PASSWORD":  o.DBAppPassword,
			"DB_READ_USER":     o.DBReadUser,
			"DB_READ_PASSWORD": o.DBReadPassword,
			"AUTHZ_URL":        fmt.Sprintf("http://authorizer:%s", o.AuthzPort),
			"AUTHZ_CLIENT_ID":  o.AuthzClientID,
			"PORT":             o.ServerPort,
		},
		HostConfigModifier: func(hc *container.HostConfig) {
			if o.Debug {
				hc.PortBindings = nat.PortMap{
					"2345/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "2345"}},
				}
				hc.CapAdd = []string{"SYS_PTRACE"}
				hc.SecurityOpt = []string{"apparmor:unconfined"}
			}
		},
		WaitingFor: waitFor,
		Networks:   []string{e.Network.Name},
	}
	if o.Debug {
		req.Entrypoint = []string{
			"/usr/local/bin/dlv", "--listen=:2345", "--headless=true",
			"--api-version=2", "--accept-multiclient", "exec", "./cmdb",
		}
	}

	exists, err := imageExists(ctx, o.ServerImage)
	if err != nil {
		return fmt.Errorf("failed to check image %s: %w", o.ServerImage, err)
	}
	if exists {
		e.logf("Image %s exists, reusing...", o.ServerImage)
		req.Image = o.ServerImage
	} else {
		e.logf("Image %s does not exist, building...", o.ServerImage)
		if err := e.buildServer(ctx, &req); err != nil {
			return err
		}
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return err
	}
	e.Server = c

	host, err := c.Host(ctx)
	if err != nil {
		return err
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return err
	}
	e.BaseURL = fmt.Sprintf("http://%s:%s", host, mapped.Port())
	return nil
}

// buildServer builds the builder stage, then points req at the runtime stage
func (e *Environment) buildServer(ctx context.Context, req *testcontainers.ContainerRequest) error {
	o := e.Options
	sessionID := uuid.NewString()
	args := map[string]*string{"RESOURCE_REAPER_SESSION_ID": &sessionID}
	if o.Debug {
		debug := "true"
		args["DEBUG"] = &debug
	}

	builder, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			FromDockerfile: testcontainers.FromDockerfile{
				Context:    o.BuildContext,
				Dockerfile: "Dockerfile",
				Repo:       "jam-build-cmdb-builder",
				Tag:        "latest",
				BuildArgs:  args,
				BuildOptionsModifier: func(opts *build.ImageBuildOptions) {
					opts.Target = "builder"
				},
				PrintBuildLog: true,
			},
		},
		Started: false,
	})
	if err != nil {
		return fmt.Errorf("failed to build builder stage: %w", err)
	}
	e.Builder = builder

	repo, tag, _ := strings.Cut(o.ServerImage, ":")
	if tag == "" {
		tag = "latest"
	}
	req.FromDockerfile = testcontainers.FromDockerfile{
		Context:    o.BuildContext,
		Dockerfile: "Dockerfile",
		Repo:       repo,
		Tag:        tag,
		KeepImage:  true,
		BuildArgs:  args,
		BuildOptionsModifier: func(opts *build.ImageBuildOptions) {
			opts.Target = "runtime"
		},
		PrintBuildLog: true,
	}
	return nil
}

func imageExists(ctx context.Context, name string) (bool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return false, err
	}
	defer cli.Close()

	images, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, err
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == name {
				return true, nil
			}
		}
	}
	return false, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
