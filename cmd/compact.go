package cmd

import (
	"context"
	"fmt"
	"os"
)

// Compact compacts the wallet store to reclaim unused space
func Compact(_ context.Context, env *Env) {
	m := env.OpenManager()
	defer m.Close()

	sizeBefore, sized := fileSize(env.Config.Store.Path)

	if err := m.Compact(); err != nil {
		HandleError(err)
	}

	if !sized {
		fmt.Println("Compacted")
		return
	}
	sizeAfter, _ := fileSize(env.Config.Store.Path)
	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}

func fileSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}
