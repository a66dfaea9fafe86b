package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/yaoapp/kun/log"
)

var watchShutdown = make(chan bool, 1) // shutdown signal
var watchReady = make(chan bool, 1)    // ready signal

// Watch reloads the configuration when the env file changes and hands
// the new config to onChange. The settings that take effect without a
// restart are the tier models, reasoning defaults, and limits; the
// listen address and usage store keep their boot values.
func Watch(envfile string, onChange func(Config)) (err error) {
	go func() { err = watchStart(envfile, onChange) }()
	select {
	case <-watchReady:
		return err
	}
}

// StopWatch stops watching the env file
func StopWatch() {
	watchShutdown <- true
	time.Sleep(200 * time.Millisecond)
}

func watchStart(envfile string, onChange func(Config)) error {

	file, err := filepath.Abs(envfile)
	if err != nil {
		watchReady <- true
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		watchReady <- true
		return err
	}
	defer watcher.Close()

	// Editors replace the file, so watch the directory and filter
	if err := watcher.Add(filepath.Dir(file)); err != nil {
		watchReady <- true
		return err
	}

	log.Info("[Watch] Watching: %s", file)
	watchReady <- true

	// Debounce bursts of events from atomic saves
	var pending *time.Timer
	reload := func() {
		cfg := LoadFrom(file)
		Conf = cfg
		log.Info("[Watch] Config reloaded")
		fmt.Println(color.GreenString("[Watch] Config reloaded"))
		if onChange != nil {
			onChange(cfg)
		}
	}

	for {
		select {
		case <-watchShutdown:
			log.Info("[Watch] Stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, reload)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("[Watch] %s", err.Error())
		}
	}
}
