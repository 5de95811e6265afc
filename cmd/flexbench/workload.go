package main

import "math/rand"

// WorkloadType mirrors the teacher's OLTP/OLAP/Reporting mix, retargeted
// at string keys.
type WorkloadType string

const (
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"
)

// keyAlphabet is spec.md's own stress-scenario alphabet.
const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789.,/#?!"

// randomKey returns a random string of length [0, 128), drawn from
// keyAlphabet.
func randomKey(r *rand.Rand) []byte {
	n := r.Intn(128)
	b := make([]byte, n)
	for i := range b {
		b[i] = keyAlphabet[r.Intn(len(keyAlphabet))]
	}
	return b
}

// ExecuteWorkload runs a mixed distribution of ops over keys drawn from
// a fixed-size pool, so repeated lookups and range scans have something
// to find.
func ExecuteWorkload(idx Index, wType WorkloadType, ops int, keyPool [][]byte) {
	r := rand.New(rand.NewSource(1))

	for i := 0; i < ops; i++ {
		choice := r.Intn(100)
		key := keyPool[r.Intn(len(keyPool))]

		switch wType {
		case OLTP:
			if choice < 90 {
				_, _ = idx.Get(key)
			} else {
				_ = idx.Insert(key, []byte("x"))
			}
		case OLAP:
			if choice < 10 {
				_, _ = idx.Get(key)
			} else {
				_ = idx.Insert(key, []byte("x"))
			}
		case Reporting:
			end := append(append([]byte{}, key...), 0xff)
			it, _ := idx.Range(key, end)
			if it != nil {
				for it.Next() {
				}
				it.Close()
			}
		}
	}
}
