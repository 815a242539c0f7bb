/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package discovery

import "time"

// Directory is the master-server side of Internet discovery: it stores
// host records published via HostPublish, bounded by a per-record
// lifetime and a cap on records sharing one source IP, and answers
// DiscoverHostList(Internet) queries with the still-live subset.
type Directory struct {
	lifetime     time.Duration
	perIPLimit   int
	now          func() time.Time
	records      map[uint64]directoryRecord // keyed by (projectGuid<<32 | a synthetic slot), see publish
	bySourceIP   map[string][]uint64
	nextRecordID uint64
}

type directoryRecord struct {
	id         uint64
	sourceIP   string
	projectGUI uint64
	info       BasicHostInfo
	expiresAt  time.Time
}

// NewDirectory starts an empty directory. lifetime is
// internetHostRecordLifetime and perIPLimit is
// internetSameIpHostRecordLimit from the specification's tuning knobs.
func NewDirectory(lifetime time.Duration, perIPLimit int, now func() time.Time) *Directory {
	if now == nil {
		now = time.Now
	}
	return &Directory{
		lifetime:   lifetime,
		perIPLimit: perIPLimit,
		now:        now,
		records:    make(map[uint64]directoryRecord),
		bySourceIP: make(map[string][]uint64),
	}
}

// Publish records (or refreshes) a server's self-announcement. If
// sourceIP already holds perIPLimit records, the oldest is evicted to
// make room, so a single source can never monopolize the directory.
func (d *Directory) Publish(sourceIP string, projectGUID uint64, info BasicHostInfo) {
	d.evictExpired()

	ids := d.bySourceIP[sourceIP]
	for _, id := range ids {
		if r, ok := d.records[id]; ok && r.info.Port == info.Port && r.projectGUI == projectGUID {
			r.info = info
			r.expiresAt = d.now().Add(d.lifetime)
			d.records[id] = r
			return
		}
	}

	if d.perIPLimit > 0 && len(ids) >= d.perIPLimit {
		oldest := ids[0]
		delete(d.records, oldest)
		d.bySourceIP[sourceIP] = ids[1:]
	}

	d.nextRecordID++
	id := d.nextRecordID
	d.records[id] = directoryRecord{
		id:         id,
		sourceIP:   sourceIP,
		projectGUI: projectGUID,
		info:       info,
		expiresAt:  d.now().Add(d.lifetime),
	}
	d.bySourceIP[sourceIP] = append(d.bySourceIP[sourceIP], id)
}

// Query returns every live record for projectGUID.
func (d *Directory) Query(projectGUID uint64) []BasicHostInfo {
	d.evictExpired()
	var out []BasicHostInfo
	for _, r := range d.records {
		if r.projectGUI == projectGUID {
			out = append(out, r.info)
		}
	}
	return out
}

func (d *Directory) evictExpired() {
	now := d.now()
	for id, r := range d.records {
		if now.After(r.expiresAt) {
			delete(d.records, id)
			ids := d.bySourceIP[r.sourceIP]
			for i, existing := range ids {
				if existing == id {
					d.bySourceIP[r.sourceIP] = append(ids[:i], ids[i+1:]...)
					break
				}
			}
		}
	}
}
