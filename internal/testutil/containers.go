package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/docker/go-connections/nat"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresPort = "5432/tcp"
	redisPort    = "6379/tcp"
	minioPort    = "9000/tcp"
)

// StackConfig names the images and credentials of the dev stack. Empty fields take defaults.
type StackConfig struct {
	DBImage     string
	DBName      string
	DBUser      string
	DBPassword  string
	RedisImage  string
	MinioImage  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	WithRedis   bool
	WithMinio   bool
}

// StackConfigFromEnv reads the same variables the service reads, plus the *_IMAGE overrides
func StackConfigFromEnv() StackConfig {
	return StackConfig{
		DBImage:     os.Getenv("DB_IMAGE"),
		DBName:      os.Getenv("DB_DATABASE"),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		RedisImage:  os.Getenv("REDIS_IMAGE"),
		MinioImage:  os.Getenv("MINIO_IMAGE"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		WithRedis:   true,
		WithMinio:   true,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (c *StackConfig) defaults() {
	c.DBImage = orDefault(c.DBImage, "postgres:16-alpine")
	c.DBName = orDefault(c.DBName, "orca")
	c.DBUser = orDefault(c.DBUser, "orca")
	c.DBPassword = orDefault(c.DBPassword, "orca-secret")
	c.RedisImage = orDefault(c.RedisImage, "redis:7-alpine")
	c.MinioImage = orDefault(c.MinioImage, "minio/minio:latest")
	c.S3AccessKey = orDefault(c.S3AccessKey, "orca-access")
	c.S3SecretKey = orDefault(c.S3SecretKey, "orca-secret-key")
	c.S3Bucket = orDefault(c.S3Bucket, "orca-outputs")
}

// DevStack is a running postgres with optional redis and minio on one network
type DevStack struct {
	Config StackConfig

	Network  *testcontainers.DockerNetwork
	Postgres testcontainers.Container
	Redis    testcontainers.Container
	Minio    testcontainers.Container

	// Env holds the service variables pointing at the mapped ports
	Env map[string]string
}

// StartDevStack starts the containers and returns once every one is accepting connections.
// On failure whatever was started is terminated.
func StartDevStack(ctx context.Context, cfg StackConfig) (_ *DevStack, err error) {
	cfg.defaults()
	stack := &DevStack{Config: cfg, Env: map[string]string{}}
	defer func() {
		if err != nil {
			_ = stack.Terminate(context.Background())
		}
	}()

	nw, err := network.New(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create network")
	}
	stack.Network = nw

	pgPort := nat.Port(postgresPort)
	stack.Postgres, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        cfg.DBImage,
			ExposedPorts: []string{string(pgPort)},
			Env: map[string]string{
				"POSTGRES_DB":       cfg.DBName,
				"POSTGRES_USER":     cfg.DBUser,
				"POSTGRES_PASSWORD": cfg.DBPassword,
			},
			// postgres logs ready once for the init run and once for the real server
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort(pgPort),
			).WithStartupTimeoutDefault(90 * time.Second),
			Networks:       []string{nw.Name},
			NetworkAliases: map[string][]string{nw.Name: {"postgres"}},
		},
		Started: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "start postgres")
	}
	host, port, err := endpoint(ctx, stack.Postgres, pgPort)
	if err != nil {
		return nil, err
	}
	stack.Env["DB_TYPE"] = "postgres"
	stack.Env["DB_HOST"] = host
	stack.Env["DB_PORT"] = port
	stack.Env["DB_DATABASE"] = cfg.DBName
	stack.Env["DB_USER"] = cfg.DBUser
	stack.Env["DB_PASSWORD"] = cfg.DBPassword

	if cfg.WithRedis {
		rPort := nat.Port(redisPort)
		stack.Redis, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:          cfg.RedisImage,
				ExposedPorts:   []string{string(rPort)},
				WaitingFor:     wait.ForListeningPort(rPort).WithStartupTimeout(30 * time.Second),
				Networks:       []string{nw.Name},
				NetworkAliases: map[string][]string{nw.Name: {"redis"}},
			},
			Started: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "start redis")
		}
		host, port, err := endpoint(ctx, stack.Redis, rPort)
		if err != nil {
			return nil, err
		}
		stack.Env["REDIS_URL"] = fmt.Sprintf("redis://%s:%s/0", host, port)
	}

	if cfg.WithMinio {
		mPort := nat.Port(minioPort)
		stack.Minio, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        cfg.MinioImage,
				ExposedPorts: []string{string(mPort)},
				Cmd:          []string{"server", "/data"},
				Env: map[string]string{
					"MINIO_ROOT_USER":     cfg.S3AccessKey,
					"MINIO_ROOT_PASSWORD": cfg.S3SecretKey,
				},
				WaitingFor:     wait.ForHTTP("/minio/health/live").WithPort(mPort).WithStartupTimeout(60 * time.Second),
				Networks:       []string{nw.Name},
				NetworkAliases: map[string][]string{nw.Name: {"minio"}},
			},
			Started: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "start minio")
		}
		host, port, err := endpoint(ctx, stack.Minio, mPort)
		if err != nil {
			return nil, err
		}
		stack.Env["S3_ENDPOINT"] = host + ":" + port
		stack.Env["S3_ACCESS_KEY"] = cfg.S3AccessKey
		stack.Env["S3_SECRET_KEY"] = cfg.S3SecretKey
		stack.Env["S3_BUCKET"] = cfg.S3Bucket
		stack.Env["S3_USE_SSL"] = "false"
		if err := makeBucket(ctx, stack.Env["S3_ENDPOINT"], cfg); err != nil {
			return nil, err
		}
	}

	return stack, nil
}

func endpoint(ctx context.Context, c testcontainers.Container, port nat.Port) (string, string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", "", errors.Wrap(err, "container host")
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return "", "", errors.Wrapf(err, "mapped port %s", port)
	}
	return host, mapped.Port(), nil
}

func makeBucket(ctx context.Context, endpoint string, cfg StackConfig) error {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: false,
	})
	if err != nil {
		return errors.Wrap(err, "minio client")
	}
	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return errors.Wrapf(err, "check bucket %s", cfg.S3Bucket)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrapf(err, "make bucket %s", cfg.S3Bucket)
	}
	return nil
}

// Terminate stops every started container and removes the network. The first error wins.
func (s *DevStack) Terminate(ctx context.Context) error {
	var first error
	keep := func(err error, what string) {
		if err != nil && first == nil {
			first = errors.Wrapf(err, "terminate %s", what)
		}
	}
	for _, c := range []struct {
		name string
		c    testcontainers.Container
	}{{"minio", s.Minio}, {"redis", s.Redis}, {"postgres", s.Postgres}} {
		if c.c != nil {
			keep(c.c.Terminate(ctx), c.name)
		}
	}
	if s.Network != nil {
		keep(s.Network.Remove(ctx), "network")
	}
	return first
}

// Setenv exports Env into the process environment so config.Load picks it up
func (s *DevStack) Setenv() error {
	for k, v := range s.Env {
		if err := os.Setenv(k, v); err != nil {
			return errors.Wrapf(err, "set %s", k)
		}
	}
	return nil
}
