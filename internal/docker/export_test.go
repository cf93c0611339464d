package docker

var MountsFor = mountsFor
