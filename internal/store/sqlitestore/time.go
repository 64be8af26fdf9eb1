package sqlitestore

import "time"

func nowStamp() time.Time { return time.Now().UTC() }

func parseStamp(s string) (time.Time, error) { return time.Parse(rfc3339, s) }
