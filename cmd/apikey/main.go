// Package main generates an API key and salt for the Video Merger API.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/maauso/video-merger-api/internal/apikey"
)

func main() {
	envFile := flag.String("write-env", "", "write API_KEY and API_KEY_SALT into this .env file")
	salt := flag.String("salt", os.Getenv("API_KEY_SALT"), "salt to hash with (default: API_KEY_SALT or a new random salt)")
	flag.Parse()

	if err := run(*envFile, *salt); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile, salt string) error {
	key, err := apikey.Generate()
	if err != nil {
		return err
	}
	if salt == "" {
		if salt, err = apikey.GenerateSalt(); err != nil {
			return err
		}
	}
	digest, err := apikey.Digest(key, salt)
	if err != nil {
		return err
	}

	fmt.Printf("API_KEY=%s\n", key)
	fmt.Printf("API_KEY_SALT=%s\n", salt)
	fmt.Printf("API_KEY_HASH=%s\n", digest)

	if envFile == "" {
		return nil
	}
	return writeEnv(envFile, key, salt)
}

// writeEnv merges the key and salt into an existing .env file, creating it
// when missing.
func writeEnv(path, key, salt string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		env = map[string]string{}
	}
	env["API_KEY"] = key
	env["API_KEY_SALT"] = salt

	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "wrote API_KEY and API_KEY_SALT to %s\n", path)
	return nil
}
