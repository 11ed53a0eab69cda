package apply

import (
	"fmt"
	"os"
)

// sidecarPath returns the first ".pacnew"-suffixed path at dest that does
// not already exist: dest.pacnew, then dest.pacnew.2, dest.pacnew.3, ...
func sidecarPath(dest string) (string, error) {
	candidate := dest + ".pacnew"
	if _, err := os.Lstat(candidate); os.IsNotExist(err) {
		return candidate, nil
	} else if err != nil {
		return "", err
	}
	for n := 2; ; n++ {
		candidate = fmt.Sprintf("%s.pacnew.%d", dest, n)
		_, err := os.Lstat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
}
