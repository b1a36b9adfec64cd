package notify

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

const ivLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomIV returns a printable 16 byte IV, the form Bark expects in the "iv" field.
func randomIV() ([]byte, error) {
	buf := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, err
	}
	for i := range buf {
		buf[i] = ivLetters[int(buf[i])%len(ivLetters)]
	}
	return buf, nil
}

// encryptToBase64 encrypts plaintext with AES-CBC and PKCS#7 padding.
func encryptToBase64(plaintext, key, iv []byte) (string, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return "", errors.New("key must be 16, 24 or 32 bytes")
	}
	if len(iv) != aes.BlockSize {
		return "", errors.New("iv must be 16 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+padding)
	copy(out, data)
	for range padding {
		out = append(out, byte(padding))
	}
	return out
}
