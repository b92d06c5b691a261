// Package config loads the environment-driven settings that wire up
// cmd/maggtomic: the Mongo connection string, database and collection
// names, and the logrus level (spec.md §6).
package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	envMongoURI    = "MAGGTOMIC_MONGO_URI"
	envMongoDB     = "MAGGTOMIC_MONGO_DB"
	envCollection  = "MAGGTOMIC_COLLECTION"
	envLogLevel    = "MAGGTOMIC_LOG_LEVEL"
	defaultMongoURI   = "mongodb://localhost:27017"
	defaultMongoDB    = "maggtomic"
	defaultCollection = "main"
	defaultLogLevel   = "info"
)

// Config is the full set of settings cmd/maggtomic needs to construct a
// DatomStore and its dependents.
type Config struct {
	MongoURI   string
	MongoDB    string
	Collection string
	LogLevel   logrus.Level
}

// FromEnv reads Config from the MAGGTOMIC_* environment variables,
// falling back to sane local defaults for anything unset.
func FromEnv() (Config, error) {
	level, err := logrus.ParseLevel(getenv(envLogLevel, defaultLogLevel))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", envLogLevel, err)
	}
	return Config{
		MongoURI:   getenv(envMongoURI, defaultMongoURI),
		MongoDB:    getenv(envMongoDB, defaultMongoDB),
		Collection: getenv(envCollection, defaultCollection),
		LogLevel:   level,
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
