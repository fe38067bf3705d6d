package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/2beens/fit45/pkg"

	log "github.com/sirupsen/logrus"
)

// prints the bcrypt hash to put in SCHEDULER_SECRET_HASH
func main() {
	secretFlag := flag.String("secret", "", "scheduler secret; read from stdin if empty")
	flag.Parse()

	secret := *secretFlag
	if secret == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("read secret from stdin: %s", err)
		}
		secret = strings.TrimSpace(line)
	}
	if secret == "" {
		log.Fatalln("empty secret")
	}

	hash, err := pkg.HashSecret(secret)
	if err != nil {
		log.Fatalf("hash secret: %s", err)
	}
	fmt.Println(hash)
}
