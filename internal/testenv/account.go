package testenv

import (
	"crypto/rand"
	"fmt"
	"math/big"

	authorizer "github.com/localnerve/authorizer-go"
)

func randInt(max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	return int(n.Int64())
}

// GeneratePassword generates a 10 character password with a capital, a
// digit and a special character
func GeneratePassword() string {
	const (
		lower   = "abcdefghijklmnopqrstuvwxyz"
		upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
		special = "!@#$%^&*"
		numbers = "0123456789"
		all     = lower + upper + special + numbers
	)

	password := make([]byte, 10)
	password[0] = upper[randInt(len(upper))]
	password[1] = special[randInt(len(special))]
	password[2] = numbers[randInt(len(numbers))]
	for i := 3; i < len(password); i++ {
		password[i] = all[randInt(len(all))]
	}
	for i := range password {
		j := randInt(len(password))
		password[i], password[j] = password[j], password[i]
	}
	return string(password)
}

// AcquireAccount signs up (if needed) and logs in to the Authorizer,
// returning the access token
func AcquireAccount(clientID, authzURL, email, password string, roles []string) (string, error) {
	client, err := authorizer.NewAuthorizerClient(clientID, authzURL, "", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create authorizer client: %w", err)
	}

	rolePtrs := make([]*string, len(roles))
	for i := range roles {
		rolePtrs[i] = &roles[i]
	}

	// An existing account fails signup; login decides
	_, _ = client.SignUp(&authorizer.SignUpInput{
		Email:           &email,
		Password:        password,
		ConfirmPassword: password,
		Roles:           rolePtrs,
	})

	res, err := client.Login(&authorizer.LoginInput{
		Email:    &email,
		Password: password,
	})
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	if res.AccessToken == nil {
		return "", fmt.Errorf("login for %s returned no access token", email)
	}
	return *res.AccessToken, nil
}
