// Command nogal lists, deletes, or moves MAME ROMs whose catver.ini category
// matches a filter, by default the "* Mature *" marker.
//
// Basic usage:
//
//	nogal -d ~/mame/roms -l
//	nogal -d ~/mame/roms -o -b ~/mame/backup
//	nogal -d ~/mame/roms -c "shooter" -i -l --format table
//	nogal history
package main
